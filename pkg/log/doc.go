/*
Package log configures the controller's structured logging and hands out
field-scoped child loggers.

A single package-level zerolog.Logger is initialized once by Init (called
from cobra's OnInitialize hook before any command runs) and every
long-lived component takes a child logger bound to its identifying
fields, so a log line can always be filtered down to one component, one
cluster, or one store without parsing message text.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("lifecycle")
	logger.Info().Str("store", name).Int("version", n).Msg("version started")

	clusterLog := log.WithCluster("cluster-a")
	clusterLog.Info().Msg("cleanup sweep finished")

Store- and version-scoped fields ride on individual events rather than
child loggers, since one engine serves every store:

	logger.Info().Str("store", name).Int("version", n).Msg("version deleted")

Console output (JSONOutput false) is for interactive runs; production
deployments log JSON to stdout and let the platform ship it.

# Level policy

debug: lock acquisition, CAS retries, per-tick monitor detail.
info: every successful lifecycle mutation, mastership transitions,
component start/stop. warn: swallowed per-tick errors, fire-and-forget
delivery failures, cleanup steps left for a later convergence pass.
error: failed operations surfaced to the caller, backend outages.
*/
package log
