// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package sysmon

import (
	"encoding/json"
	"html/template"
	"net/http"
	"os"
	"runtime"
	"sort"
	"sync"

	"roboburn/pkg/logger"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Section supplies one extra block of diagnostics, e.g. poll loop stats.
type Section func() any

// Service serves host, process and data-dir diagnostics plus any
// registered sections.
type Service struct {
	dir string
	log *logger.Logger

	mu       sync.RWMutex
	sections map[string]Section
}

// New reports disk usage for dataDir.
func New(dataDir string) *Service {
	return &Service{
		dir:      dataDir,
		log:      logger.New("Diagnostics"),
		sections: make(map[string]Section),
	}
}

// AddSection registers fn under name; it is called on every request.
func (s *Service) AddSection(name string, fn Section) {
	s.mu.Lock()
	s.sections[name] = fn
	s.mu.Unlock()
}

// Snapshot collects everything the page shows.
func (s *Service) Snapshot() map[string]any {
	out := map[string]any{
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
	}

	cpuPercent := 0.0
	if list, err := cpu.Percent(0, false); err == nil && len(list) > 0 {
		cpuPercent = list[0]
	}

	var procRSS uint64
	var procCPU float64
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if memInfo, err := p.MemoryInfo(); err == nil {
			procRSS = memInfo.RSS
		}
		if pct, err := p.CPUPercent(); err == nil {
			procCPU = pct
		}
	}

	out["cpu"] = map[string]any{
		"system_percent":  cpuPercent,
		"process_percent": procCPU,
	}

	memory := map[string]any{"process_rss": procRSS}
	if vmem, err := mem.VirtualMemory(); err == nil {
		memory["system_total"] = vmem.Total
		memory["system_used"] = vmem.Used
		memory["system_free"] = vmem.Available
	}
	out["memory"] = memory

	if total, free, used, err := DiskUsage(s.dir); err == nil {
		out["disk"] = map[string]any{
			"path":  s.dir,
			"total": total,
			"used":  used,
			"free":  free,
		}
	} else {
		s.log.Debug("disk usage for %s: %v", s.dir, err)
	}

	s.mu.RLock()
	for name, fn := range s.sections {
		out[name] = fn()
	}
	s.mu.RUnlock()

	return out
}

var pageTpl = template.Must(template.New("sysmon").Funcs(template.FuncMap{
	"json": func(v any) string {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err.Error()
		}
		return string(b)
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
	<title>Diagnostics</title>
	<style>
		body { font-family: sans-serif; margin: 2em; background: #f9f9f9; }
		pre { background: #fff; border: 1px solid #ccc; padding: 1em; }
	</style>
</head>
<body>
	<h1>Diagnostics</h1>
	{{range .Keys}}
	<h2>{{.}}</h2>
	<pre>{{json (index $.Data .)}}</pre>
	{{end}}
</body>
</html>
`))

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data := s.Snapshot()

	if r.Header.Get("Accept") == "application/json" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(data)
		return
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTpl.Execute(w, map[string]any{"Keys": keys, "Data": data}); err != nil {
		s.log.Error("render: %v", err)
	}
}
