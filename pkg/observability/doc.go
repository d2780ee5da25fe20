/*
Package observability exposes Prometheus collectors for stepping runs.

Collectors are registered on a caller-supplied registry so that several
environments in one process (or one test) never collide on the default registry.
Every method is safe on a nil *Metrics, which is how components run without metrics.
*/
package observability
