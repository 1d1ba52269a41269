// Package server exposes the review decision API over HTTP.
//
// Routes:
//
//	POST /tickets/:id/reviews              record a reviewer's plan decision (decision token required)
//	GET  /tickets/:id                      ticket snapshot
//	GET  /tickets/:id/checkpoints/:graph   latest checkpoint, or ?history=true for all
//	GET  /healthz                          liveness, with a database ping when configured
//	GET  /metrics                          Prometheus metrics
//
// Decision tokens are issued by package auth and sent as
// "Authorization: Bearer <token>". The token names the reviewer; the
// request body only carries the verdict.
package server
