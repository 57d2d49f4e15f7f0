// Package particle talks to the Particle device cloud on behalf of keg
// monitors whose chip type is "particle".
//
// Client is the HTTP+JSON transport: it injects the account's bearer token
// and refuses to call out when device services are disabled or no API key
// is configured. Capability maps the logical operations of package
// provider onto Particle firmware functions and translates their return
// codes.
package particle
