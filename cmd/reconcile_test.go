/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Dussand/conciliacion-Gmoney/config"
	"github.com/Dussand/conciliacion-Gmoney/ingest"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func loadCLIConfig(t *testing.T, dir string) *config.Configuration {
	t.Helper()
	configPath := writeFile(t, dir, "conciliacion.json", `{"data_source":{"dns":"postgres://localhost/test"},"redis":{"dns":"localhost:6379"}}`)
	require.NoError(t, config.InitConfig(configPath))
	cnf, err := config.Fetch()
	require.NoError(t, err)
	return cnf
}

func TestRunOffline(t *testing.T) {
	dir := t.TempDir()
	cnf := loadCLIConfig(t, dir)

	policy, err := ingest.LoadWindowPolicy(cnf.Reconciliation.TimeZone, *cnf.Reconciliation.CutoffHour, 0)
	require.NoError(t, err)
	inside := policy.WindowFor(time.Now()).Start.Add(time.Hour)
	day := inside.Format("2006-01-02")

	ledger := writeFile(t, dir, "metabase.csv", fmt.Sprintf(
		"numero_operacion,total,creacion_deuda_fecha_peru,estado\nOP1,100,%s,Pagado\nOP2,50,%s,Pagado\n",
		inside.Format("2006-01-02 15:04:05"), inside.Format("2006-01-02 15:04:05")))
	provider := writeFile(t, dir, "gmoney.csv", fmt.Sprintf(
		"id_transaccion_cce,monto_gmoney,fecha,estado\nOP1,100,%s,A\nOP2,40,%s,A\n", day, day))
	out := filepath.Join(dir, "report.xlsx")

	app := &conciliacionInstance{cnf: cnf}
	var buf bytes.Buffer
	err = runOffline(context.Background(), app, reconcileFlags{ledger: ledger, provider: provider, operator: "ana", out: out}, &buf)
	require.NoError(t, err)

	printed := buf.String()
	assert.Contains(t, printed, day)
	assert.Contains(t, printed, "Diferencias")
	assert.Contains(t, printed, "Discrepancies: 1")
	assert.Contains(t, printed, "Diferencia Importe")

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), 2)
}

func TestRunOffline_MissingFile(t *testing.T) {
	app := &conciliacionInstance{cnf: loadCLIConfig(t, t.TempDir())}

	err := runOffline(context.Background(), app, reconcileFlags{ledger: "absent.csv", provider: "absent.csv"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestInitializeQueues(t *testing.T) {
	conf := &config.Configuration{Queue: config.QueueConfig{SummaryQueue: "summaries"}}
	assert.Equal(t, map[string]int{"summaries": 1}, initializeQueues(conf))
}
