// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package emu

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// emulatorKey matches emulator.<N>.name and emulator.<N>.console.port.
var emulatorKey = regexp.MustCompile(`^emulator\.(\d+)\.(name|console\.port)$`)

// Definition is one emulator entry read from a properties file.
type Definition struct {
	ID string `json:"id" yaml:"id"`
	EmulatorConfig
}

// ReadProperties parses simple key=value lines of any length. Blank lines,
// lines starting with # or !, and lines without a key are ignored. Later keys
// win.
func ReadProperties(r io.Reader) (map[string]string, error) {
	props := make(map[string]string)
	br := bufio.NewReader(r)
	for {
		raw, err := br.ReadString('\n')
		if raw != "" {
			parsePropertyLine(props, raw)
		}
		if err == io.EOF {
			return props, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read properties: %w", err)
		}
	}
}

func parsePropertyLine(props map[string]string, raw string) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return
	}
	k, v, ok := strings.Cut(line, "=")
	if !ok {
		return
	}
	k = strings.TrimSpace(k)
	if k == "" {
		return
	}
	props[k] = strings.TrimSpace(v)
}

// ParseDefinitions groups emulator.<N>.* keys by N and keeps the groups that
// have both a name and a well-formed serial. Incomplete groups are logged and
// skipped. The result is ordered by ID.
func ParseDefinitions(env Env, props map[string]string) []Definition {
	groups := make(map[string]*EmulatorConfig)
	for k, v := range props {
		m := emulatorKey.FindStringSubmatch(k)
		if m == nil {
			continue
		}
		g, ok := groups[m[1]]
		if !ok {
			g = &EmulatorConfig{}
			groups[m[1]] = g
		}
		switch m[2] {
		case "name":
			g.Name = v
		case "console.port":
			g.Serial = v
		}
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sortIDs(ids)

	defs := make([]Definition, 0, len(ids))
	for _, id := range ids {
		g := groups[id]
		if g.Name == "" {
			logEvent(env, "skipping emulator definition", "id", id, "reason", "missing name")
			continue
		}
		if _, err := PortFromSerial(g.Serial); err != nil {
			logEvent(env, "skipping emulator definition", "id", id, "reason", err.Error())
			continue
		}
		defs = append(defs, Definition{ID: id, EmulatorConfig: *g})
	}
	return defs
}

// LoadDefinitions reads emulator definitions from a properties file. A
// missing or unreadable file classifies as errdefs.ErrNotFound.
func LoadDefinitions(env Env, path string) ([]Definition, error) {
	_, span := startSpan(env, "emu.LoadDefinitions", attribute.String("path", path))
	defer span.End()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			err = notFound("config %s", path)
		} else {
			err = notFound("config %s unreadable (%v)", path, err)
		}
		recordSpanError(span, err)
		return nil, err
	}
	defer f.Close()
	props, err := ReadProperties(f)
	if err != nil {
		err = fmt.Errorf("config parse failed (%s): %w", path, err)
		recordSpanError(span, err)
		return nil, err
	}
	defs := ParseDefinitions(env, props)
	span.SetAttributes(attribute.Int("emulators", len(defs)))
	logEvent(env, "config loaded", "path", path, "properties", len(props), "emulators", len(defs))
	return defs, nil
}
