// Package account exposes the account level Pinata endpoints: credential
// verification and pinned data totals.
package account
