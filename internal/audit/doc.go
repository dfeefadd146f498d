// Package audit records who changed what through the API.
//
// Entries are written to the audit_logs table. The api package queues
// them and writes serially so requests never wait on the audit insert.
package audit
