package model

import "net/url"

// Names of the scalar keys shared across packages. Sources and commands
// read most of these; the engine writes them.
const (
	KeyUsers             = "users"
	KeyCompanies         = "companies"
	KeyRepos             = "repos"
	KeyReleases          = "releases"
	KeyMailLists         = "mail_lists"
	KeyMemberLists       = "member_lists"
	KeyModuleGroups      = "module_groups"
	KeyUpdateTime        = "runtime_storage_update_time"
	KeyDefaultDataDigest = "default_data_digest"
	KeyActivePids        = "runtime:active_pids"
	KeyLastRun           = "runtime:last_run"
)

// RecordKeyPrefix namespaces harvested records apart from cursors and
// scalar keys.
const RecordKeyPrefix = "record:"

// RecordKey returns the storage key of a record by primary key.
func RecordKey(primaryKey string) string {
	return RecordKeyPrefix + primaryKey
}

// VcsCursorKey returns the cursor key for a repo branch on the commit side.
// The URI is query-escaped so key segments stay unambiguous whatever the URI
// contains.
func VcsCursorKey(uri, branch string) string {
	return "vcs:" + url.QueryEscape(uri) + ":" + branch
}

// RcsCursorKey returns the cursor key for a repo branch on the review side.
func RcsCursorKey(uri, branch string) string {
	return "rcs:" + url.QueryEscape(uri) + ":" + branch
}

// MailLinkKey marks one mailing list archive as fully harvested.
func MailLinkKey(link string) string {
	return "mail_link:" + link
}

// MemberIndexKey tracks the highest member profile index consumed from a
// roster.
func MemberIndexKey(uri string) string {
	return "member_index:" + url.QueryEscape(uri)
}

// MemberScanKey records when a roster was last walked from the start.
func MemberScanKey(uri string) string {
	return "member_scan:" + url.QueryEscape(uri)
}
