// Package auth identifies the caller of every request.
//
// Three kinds of account share one bearer-token slot: human users,
// devices and service accounts. A principal token is the base64 encoding
// of "{kind}|{api_key}" where kind is "user", "device" or "svc". Resolver
// decodes it and asks the matching store for the record, producing a
// Principal that lives for the duration of one request.
//
// Humans may also sign in with email and password (Argon2id hashes) and
// receive a short-lived HS256 session token.
//
// Token format errors all wrap ErrFormat; the HTTP layer treats them as
// "not authenticated" rather than as a server fault.
package auth
