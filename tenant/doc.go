// Package tenant provides the tenant configuration lookup used to decide
// whether an approved plan is implemented automatically and who reviews it.
//
// A tenants file looks like:
//
//	default: acme
//	tenants:
//	  - tenant_id: acme
//	    auto_implement_after_plan_approval: true
//	    repository: acme/api
//	    base_branch: main
//	    required_reviewers: [ana, ben]
//	    ticket_prefixes: [ACME-]
package tenant
