// Package identitysdk holds the wire types for the identity service HTTP
// API. Both the server handlers and external consumers marshal through
// these structs, so the JSON shape lives in exactly one place.
package identitysdk
