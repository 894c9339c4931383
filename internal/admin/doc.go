// Package admin implements taskflow-admin, the operator command line for the
// auth server's database.
//
// Commands:
//   - migrate: apply pending schema migrations
//   - create-user: create an account, optionally a superuser
//   - scopes get|add|remove|set: inspect and change a user's scopes
//   - purge-tokens: delete expired refresh-token records
//
// Every command connects with the server configuration (file, TASKFLOW_*
// environment, or --dsn) and exits. Users are addressed by email.
package admin
