package app

import (
	"context"
	"time"

	"github.com/his-sync/replicator/internal/store"
)

// maxSyncsPerHourResolver reads a configuration's rate-limit setting
// on demand, so the Lifecycle Manager never has to depend on the autosync
// domain package directly.
func maxSyncsPerHourResolver(autoSync store.AutoSyncStore) func(string) int {
	return func(configID string) int {
		settings, err := autoSync.GetAutoSync(context.Background(), configID)
		if err != nil {
			return 0
		}
		return settings.MaxSyncsPerHour
	}
}

// cooldownAfterErrorResolver reads a configuration's post-failure cooldown
// duration on demand.
func cooldownAfterErrorResolver(autoSync store.AutoSyncStore) func(string) time.Duration {
	return func(configID string) time.Duration {
		settings, err := autoSync.GetAutoSync(context.Background(), configID)
		if err != nil {
			return 0
		}
		return settings.CooldownAfterError
	}
}
