package csgo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"GameStateServer/internal/config"

	homedir "github.com/mitchellh/go-homedir"
)

// ErrCfgFolderNotFound is returned when no game installation could be located.
var ErrCfgFolderNotFound = errors.New("csgo: cfg folder not found")

const gameDir = "Counter-Strike Global Offensive"

// Relative to the game directory; CS:GO first, then the CS2 layout.
var cfgDirs = [][]string{
	{"csgo", "cfg"},
	{"game", "csgo", "cfg"},
}

var (
	libraryPathRe = regexp.MustCompile(`"path"\s+"((?:[^"\\]|\\.)*)"`)
	kvEscaper     = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

// ConfigFileName is the file name the game picks up from its cfg folder.
func ConfigFileName(name string) string {
	return "gamestate_integration_" + name + ".cfg"
}

// RenderConfig renders cfg as the KeyValues document the game reads on start.
func RenderConfig(cfg config.GSIConfig, port int) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "\"%s integration\"\n{\n", kvEscaper.Replace(cfg.Name))

	writeKV(&b, 1, "uri", "http://"+localAddr(port))
	writeKV(&b, 1, "timeout", seconds(cfg.Timeout))
	writeKV(&b, 1, "buffer", seconds(cfg.Buffer))
	writeKV(&b, 1, "throttle", seconds(cfg.Throttle))
	writeKV(&b, 1, "heartbeat", seconds(cfg.Heartbeat))

	if cfg.AuthToken != "" {
		openBlock(&b, 1, "auth")
		writeKV(&b, 2, "token", cfg.AuthToken)
		closeBlock(&b, 1)
	}

	openBlock(&b, 1, "output")
	writeKV(&b, 2, "precision_time", strconv.Itoa(cfg.PrecisionTime))
	writeKV(&b, 2, "precision_position", strconv.Itoa(cfg.PrecisionPosition))
	writeKV(&b, 2, "precision_vector", strconv.Itoa(cfg.PrecisionVector))
	closeBlock(&b, 1)

	openBlock(&b, 1, "data")
	for _, section := range cfg.Data {
		writeKV(&b, 2, section, "1")
	}
	closeBlock(&b, 1)

	b.WriteString("}\n")
	return b.Bytes()
}

// WriteConfig writes the integration file into dir, which must already exist,
// and returns the written path.
func WriteConfig(dir string, cfg config.GSIConfig, port int) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("cfg folder: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("cfg folder %s is not a directory", dir)
	}

	path := filepath.Join(dir, ConfigFileName(cfg.Name))
	if err := os.WriteFile(path, RenderConfig(cfg, port), 0o644); err != nil {
		return "", fmt.Errorf("write gsi config: %w", err)
	}
	return path, nil
}

// ResolveCfgFolder returns cfg.CfgFolder, or the folder found by FindCfgFolder when it is empty.
func ResolveCfgFolder(cfg config.GSIConfig) (string, error) {
	return resolveCfgFolder(cfg, FindCfgFolder)
}

func resolveCfgFolder(cfg config.GSIConfig, find func() (string, error)) (string, error) {
	if cfg.CfgFolder != "" {
		return cfg.CfgFolder, nil
	}
	return find()
}

// FindCfgFolder looks for the game's cfg folder in every Steam library of the current user.
func FindCfgFolder() (string, error) {
	roots, err := steamRoots()
	if err != nil {
		return "", err
	}
	return findCfgFolder(roots)
}

func steamRoots() ([]string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		roots := []string{`C:\Program Files (x86)\Steam`, `C:\Program Files\Steam`}
		if pf := os.Getenv("ProgramFiles(x86)"); pf != "" {
			roots = append([]string{filepath.Join(pf, "Steam")}, roots...)
		}
		return roots, nil
	case "darwin":
		return []string{filepath.Join(home, "Library", "Application Support", "Steam")}, nil
	default:
		return []string{
			filepath.Join(home, ".steam", "steam"),
			filepath.Join(home, ".local", "share", "Steam"),
			filepath.Join(home, ".var", "app", "com.valvesoftware.Steam", ".local", "share", "Steam"),
		}, nil
	}
}

// findCfgFolder checks each root and every library listed in its libraryfolders.vdf.
func findCfgFolder(roots []string) (string, error) {
	var libraries []string
	for _, root := range roots {
		libraries = append(libraries, root)
		data, err := os.ReadFile(filepath.Join(root, "steamapps", "libraryfolders.vdf"))
		if err != nil {
			continue
		}
		for _, m := range libraryPathRe.FindAllSubmatch(data, -1) {
			libraries = append(libraries, strings.ReplaceAll(string(m[1]), `\\`, `\`))
		}
	}

	seen := make(map[string]bool, len(libraries))
	for _, lib := range libraries {
		lib = filepath.Clean(lib)
		if seen[lib] {
			continue
		}
		seen[lib] = true

		for _, rel := range cfgDirs {
			dir := filepath.Join(append([]string{lib, "steamapps", "common", gameDir}, rel...)...)
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				return dir, nil
			}
		}
	}
	return "", ErrCfgFolderNotFound
}

func localAddr(port int) string {
	return "127.0.0.1:" + strconv.Itoa(port)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64)
}

func writeKV(b *bytes.Buffer, depth int, key, value string) {
	fmt.Fprintf(b, "%s\"%s\" \"%s\"\n", strings.Repeat("\t", depth), kvEscaper.Replace(key), kvEscaper.Replace(value))
}

func openBlock(b *bytes.Buffer, depth int, key string) {
	indent := strings.Repeat("\t", depth)
	fmt.Fprintf(b, "%s\"%s\"\n%s{\n", indent, kvEscaper.Replace(key), indent)
}

func closeBlock(b *bytes.Buffer, depth int) {
	b.WriteString(strings.Repeat("\t", depth) + "}\n")
}
