package cli

import (
	"strconv"
	"strings"
)

// parseUserIDs turns a comma-separated list like "3, 5,8" into user IDs.
// Empty and unparseable entries are skipped.
func parseUserIDs(input string) []int64 {
	var ids []int64
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
