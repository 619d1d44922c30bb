// Package tenant provides multi-tenant identity for Sugarline Core: tenant,
// user, and API key persistence plus request-time tenant resolution.
//
// Every CGM entry belongs to exactly one tenant. The Resolver maps incoming
// credentials (legacy api-secret header, JWT bearer token, or subdomain slug)
// to the owning tenant before any data access happens; handlers never see a
// request without a resolved tenant ID.
package tenant
