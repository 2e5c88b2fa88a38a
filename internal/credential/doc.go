// Package credential inspects bearer tokens issued by the backend.
//
// Tokens are decoded without verifying their signature. The claims are used
// only to time expiry warnings and forced logouts on the client; they are
// never an authorization decision. The backend re-checks the token on every
// request, and a 401 from it always wins over what the claims say.
package credential
