// Package audit records fleet mutations in the audit_logs table.
//
// Entries are append-only. Registry events reach the table through
// [Notifier], which is registered on the device registry at startup;
// document saves are recorded by the API directly. The acting principal
// travels in the request context, see [WithActor].
package audit
