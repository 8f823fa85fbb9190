package logs

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger — общий логгер процесса. До Init пишет text/info в stderr.
var Logger = logrus.New()

type Options struct {
	Level  string // trace|debug|info|warn|error
	Format string // text|json
	File   string // пусто: stderr
}

// Init настраивает Logger по опциям. Ошибка открытия файла не фатальна:
// остаёмся на stderr и пишем предупреждение.
func Init(o Options) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(o.Level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)

	switch strings.ToLower(o.Format) {
	case "json":
		Logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		Logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableQuote: true})
	}

	var out io.Writer = os.Stderr
	if o.File != "" {
		f, err := os.OpenFile(o.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			Logger.Warnf("log file %s: %v, using stderr", o.File, err)
		} else {
			out = f
		}
	}
	Logger.SetOutput(out)
}

// Discard silences Logger; used by tests that only inspect hooks.
func Discard() {
	Logger.SetOutput(io.Discard)
	Logger.SetLevel(logrus.DebugLevel)
}

// Категории событий для аудита (поле "event").
const (
	EvMerge   = "merge"
	EvOLSR    = "olsr"
	EvSpider  = "spider"
	EvMID     = "mid"
	EvHNA     = "hna"
	EvNetwork = "network"
	EvDevice  = "device"
	EvNode    = "node"
	EvPerson  = "person"
	EvContact = "contact"
)

// Event returns an entry tagged with the audit category ev.
func Event(ev string) *logrus.Entry {
	return Logger.WithField("event", ev)
}
