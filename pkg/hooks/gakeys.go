package hooks

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// RecordGASession sets <feature>.<platform> to sessionID in the GA keys file.
// Only features already listed in the file are recorded; it reports whether
// the file was updated. A missing file records nothing.
func RecordGASession(path, feature, platform, sessionID string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	key := escapePath(feature)
	if !gjson.GetBytes(data, key).Exists() {
		return false, nil
	}

	out, err := sjson.SetBytes(data, key+"."+escapePath(platform), sessionID)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, pretty.Pretty(out), info.Mode().Perm()); err != nil {
		return false, err
	}
	return true, nil
}

// Characters with a meaning in gjson/sjson paths. The backslash comes first
// so escapes added for the others are not doubled.
var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	".", `\.`,
	"*", `\*`,
	"?", `\?`,
	"|", `\|`,
	"#", `\#`,
	"@", `\@`,
	"!", `\!`,
	"=", `\=`,
	"<", `\<`,
	">", `\>`,
	"%", `\%`,
	":", `\:`,
)

// escapePath quotes a literal key for gjson/sjson paths.
func escapePath(key string) string {
	return pathEscaper.Replace(key)
}
