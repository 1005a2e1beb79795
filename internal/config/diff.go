package config

import (
	"reflect"
	"sort"
	"strings"

	logx "calbot/pkg/logx"
)

// SummarizeConfigChange returns the changed section names plus safe
// structured attrs for logging. Secrets (tokens, API keys, passwords) are
// reported as set/unset only.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		!reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) ||
		(strings.TrimSpace(oldCfg.Telegram.Token) != "") != (strings.TrimSpace(newCfg.Telegram.Token) != "") {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
			logx.String("storage.pending_backend", strings.TrimSpace(newCfg.Storage.Pending.Backend)),
		)
	}

	if (strings.TrimSpace(oldCfg.Parser.APIKey) != "") != (strings.TrimSpace(newCfg.Parser.APIKey) != "") ||
		oldCfg.Parser.BaseURL != newCfg.Parser.BaseURL ||
		oldCfg.Parser.Model != newCfg.Parser.Model ||
		oldCfg.Parser.Timeout != newCfg.Parser.Timeout ||
		oldCfg.Parser.Demo != newCfg.Parser.Demo {
		changed = append(changed, "parser")
		attrs = append(attrs,
			logx.String("parser.model", newCfg.Parser.Model),
			logx.Bool("parser.api_key_set", strings.TrimSpace(newCfg.Parser.APIKey) != ""),
			logx.Bool("parser.demo", newCfg.Parser.Demo),
		)
	}

	if oldCfg.Scheduling != newCfg.Scheduling {
		changed = append(changed, "scheduling")
		attrs = append(attrs,
			logx.String("scheduling.work_start", newCfg.Scheduling.WorkStart),
			logx.String("scheduling.work_end", newCfg.Scheduling.WorkEnd),
			logx.String("scheduling.timezone", newCfg.Scheduling.Timezone),
		)
	}

	if oldCfg.Reminder != newCfg.Reminder {
		changed = append(changed, "reminder")
		attrs = append(attrs,
			logx.Bool("reminder.enabled", newCfg.Reminder.Enabled),
			logx.String("reminder.cron", newCfg.Reminder.Cron),
			logx.Int("reminder.rate_per_sec", newCfg.Reminder.RatePerSec),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
