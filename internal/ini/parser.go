package ini

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/redhatinsights/inicascade/internal/textcodec"
)

// DefaultCharset is the charset of a table whose base file declares none.
const DefaultCharset = "utf8"

var (
	charsetDirective = regexp.MustCompile(`#\?ini(.+)\?`)
	blockLine        = regexp.MustCompile(`^\[(.+)\]\s*$`)
	emptyArrayLine   = regexp.MustCompile(`^(\w+)\[\]$`)
	assignmentLine   = regexp.MustCompile(`^(\w+)(\[\])?=(.*)$`)
)

// parser applies settings files, one after another, onto a single table.
type parser struct {
	table   *Table
	charset string
	// recoder is nil when text conversion is disabled.
	recoder textcodec.Recoder
	logger  *slog.Logger
}

func newParser(recoder textcodec.Recoder, logger *slog.Logger) *parser {
	return &parser{
		table:   NewTable(),
		charset: DefaultCharset,
		recoder: recoder,
		logger:  logger,
	}
}

// parseFile reads path and applies its assignments. Only the base file may
// set the charset of the table.
func (p *parser) parseFile(path string, base bool) error {
	data, err := readInput(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnreadableFile, path, err)
	}
	p.logger.Debug("parsing settings file", "file", path)
	p.parseLines(path, splitLines(data), base)
	return nil
}

func (p *parser) parseLines(path string, lines []string, base bool) {
	if base {
		if charset, ok := directiveCharset(lines); ok {
			p.charset = charset
		}
	}

	current := ""
	recodeFailed := false
	for n, line := range lines {
		if strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.Index(line, "##"); i >= 0 {
			line = line[:i]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := blockLine.FindStringSubmatch(line); m != nil {
			current = strings.TrimSpace(m[1])
			p.table.Ensure(current)
			continue
		}
		if m := emptyArrayLine.FindStringSubmatch(strings.TrimRight(line, " \t")); m != nil {
			p.table.Ensure(current).Set(m[1], Array())
			continue
		}
		m := assignmentLine.FindStringSubmatch(line)
		if m == nil {
			p.logger.Debug("ignoring unrecognised line", "file", path, "line", n+1)
			continue
		}

		key, value := m[1], m[3]
		if p.recoder != nil {
			recoded, err := p.recoder.Recode(value, p.charset)
			if err != nil && !recodeFailed {
				recodeFailed = true
				p.logger.Warn("failed to convert value", "file", path, "charset", p.charset, "error", err)
			}
			value = recoded
		}
		assign(p.table.Ensure(current), key, value, m[2] != "")
	}
}

// assign applies one assignment to b. Once a key holds an array it stays an
// array: a plain assignment replaces its items with the single value.
func assign(b *Block, key, value string, appendItem bool) {
	prev, exists := b.Get(key)
	switch {
	case appendItem && exists:
		b.Set(key, prev.appendItem(value))
	case appendItem:
		b.Set(key, Array(value))
	case exists && prev.IsArray():
		b.Set(key, Array(value))
	default:
		b.Set(key, Scalar(value))
	}
}

// directiveCharset looks for a `#?ini charset="NAME"?` directive on the
// first non-blank line.
func directiveCharset(lines []string) (string, bool) {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := charsetDirective.FindStringSubmatch(line)
		if m == nil {
			return "", false
		}
		for _, arg := range strings.Fields(m[1]) {
			name, value, found := strings.Cut(arg, "=")
			if !found || name != "charset" {
				continue
			}
			value = strings.TrimSuffix(strings.TrimPrefix(value, `"`), `"`)
			if value != "" {
				return value, true
			}
		}
		return "", false
	}
	return "", false
}

func splitLines(data []byte) []string {
	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// readInput returns the text of a settings file, unpacking the packed
// variant.
func readInput(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !strings.HasSuffix(path, PackedSuffix) {
		return io.ReadAll(f)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open packed file: %w", err)
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
