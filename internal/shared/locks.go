package shared

import "fmt"

// ProjectLockKey builds the redis key guarding writes to one project ledger.
func ProjectLockKey(projectID string) string {
	return fmt.Sprintf("sitestock:project:%s:lock", projectID)
}
