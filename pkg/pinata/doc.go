// Package pinata wires the files, account and gateway clients together.
// Clients talk to the Pinata REST API in "http" mode, or to an in-memory
// store in "mock" mode that stays API compatible with the HTTP clients. In
// "auto" mode the HTTP clients are used when a JWT is available. NewFromEnv
// reads PINATA_RUNTIME_MODE, PINATA_JWT, PINATA_API_URL, PINATA_UPLOAD_URL,
// PINATA_GATEWAY_URL and PINATA_MOCK_SEED.
package pinata
