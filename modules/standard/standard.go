// Package standard registers every first-party module. Binaries import it
// for its side effects.
package standard

import (
	// Drivers.
	_ "github.com/flemzord/sdiscuss/modules/identity/null"
	_ "github.com/flemzord/sdiscuss/modules/identity/session"
	_ "github.com/flemzord/sdiscuss/modules/render/markdown"
	_ "github.com/flemzord/sdiscuss/modules/store/sqlite"

	// Extensions.
	_ "github.com/flemzord/sdiscuss/modules/ext/archiveversions"
	_ "github.com/flemzord/sdiscuss/modules/ext/auditlog"
	_ "github.com/flemzord/sdiscuss/modules/ext/captureauthor"
	_ "github.com/flemzord/sdiscuss/modules/ext/captureemail"
	_ "github.com/flemzord/sdiscuss/modules/ext/captureremoteaddr"
	_ "github.com/flemzord/sdiscuss/modules/ext/capturewebsite"
	_ "github.com/flemzord/sdiscuss/modules/ext/livefeed"
	_ "github.com/flemzord/sdiscuss/modules/ext/moderation"
	_ "github.com/flemzord/sdiscuss/modules/ext/ratelimit"
	_ "github.com/flemzord/sdiscuss/modules/ext/replytree"
	_ "github.com/flemzord/sdiscuss/modules/ext/threadstats"
	_ "github.com/flemzord/sdiscuss/modules/ext/validatelen"
	_ "github.com/flemzord/sdiscuss/modules/ext/voting"
)
