// Package middleware provides the HTTP middleware of the progress server:
// request logging through zerolog and Prometheus request metrics labelled
// by route template.
package middleware
