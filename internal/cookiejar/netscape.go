// Package cookiejar converts the JSON cookie export the core consumes
// (never produces, per spec.md §6) into the Netscape-format file the
// media-info extractor requires:
// domain, domain_flag, path, secure, expires, name, value — tab-separated.
package cookiejar

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Cookie mirrors the JSON shape spec.md §6 documents.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"httpOnly"`
	Expires  int64  `json:"expires"`
}

const netscapeHeader = "# Netscape HTTP Cookie File\n"

// LoadJSON reads a JSON cookie array from path.
func LoadJSON(path string) ([]Cookie, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cookies []Cookie
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return nil, fmt.Errorf("cookiejar: parsing %s: %w", path, err)
	}
	return cookies, nil
}

// NetscapePath is the deterministic sibling .txt path for jsonPath, per
// spec.md §6 ("output path is deterministic (sibling .txt file)").
func NetscapePath(jsonPath string) string {
	trimmed := strings.TrimSuffix(jsonPath, ".json")
	return trimmed + ".txt"
}

// ConvertToNetscape writes cookies to path in Netscape format. domain_flag
// is "TRUE" when the domain starts with a dot (applies to subdomains too),
// matching the convention the media-info extractor expects.
func ConvertToNetscape(cookies []Cookie, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(netscapeHeader); err != nil {
		return err
	}
	for _, c := range cookies {
		domainFlag := "FALSE"
		if strings.HasPrefix(c.Domain, ".") {
			domainFlag = "TRUE"
		}
		secure := "FALSE"
		if c.Secure {
			secure = "TRUE"
		}
		line := strings.Join([]string{
			c.Domain,
			domainFlag,
			orDefault(c.Path, "/"),
			secure,
			strconv.FormatInt(c.Expires, 10),
			c.Name,
			c.Value,
		}, "\t")
		if _, err := w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ConvertFile reads jsonPath, writes NetscapePath(jsonPath), and returns
// that path — the core's one entry point for "first use" conversion per
// spec.md §4.E.1.
func ConvertFile(jsonPath string) (string, error) {
	cookies, err := LoadJSON(jsonPath)
	if err != nil {
		return "", err
	}
	outPath := NetscapePath(jsonPath)
	if err := ConvertToNetscape(cookies, outPath); err != nil {
		return "", err
	}
	return outPath, nil
}

// ParseNetscape re-parses a Netscape-format file, used to verify the
// round-trip law in spec.md §8: JSON -> Netscape -> re-parse yields the
// same set of (name, value, domain, path, secure, expires) tuples.
func ParseNetscape(path string) ([]Cookie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cookies []Cookie
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}
		expires, _ := strconv.ParseInt(fields[4], 10, 64)
		cookies = append(cookies, Cookie{
			Domain:  fields[0],
			Path:    fields[2],
			Secure:  fields[3] == "TRUE",
			Expires: expires,
			Name:    fields[5],
			Value:   fields[6],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return cookies, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
