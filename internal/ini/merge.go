package ini

import (
	"log/slog"

	"github.com/redhatinsights/inicascade/internal/textcodec"
)

// merge parses inputs in order onto one table. Later files win for scalar
// keys, array keys accumulate. Unreadable files are reported and skipped.
func merge(inputs []InputFile, recoder textcodec.Recoder, logger *slog.Logger) (*Table, string) {
	p := newParser(recoder, logger)
	for _, in := range inputs {
		if err := p.parseFile(in.Path, in.Base); err != nil {
			logger.Error("failed to read settings file", "file", in.Path, "error", err)
		}
	}
	return p.table, p.charset
}
