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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT          = "5001"
	DEFAULT_JOIN_KEY      = "id_operacion"
	DEFAULT_TIME_ZONE     = "America/Lima"
	DEFAULT_CUTOFF_HOUR   = 16
	DEFAULT_SUMMARY_QUEUE = "conciliacion_summaries"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"CONCILIACION_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"CONCILIACION_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"CONCILIACION_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"CONCILIACION_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"CONCILIACION_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"CONCILIACION_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"CONCILIACION_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"CONCILIACION_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"CONCILIACION_REDIS_SKIP_TLS_VERIFY"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"CONCILIACION_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"CONCILIACION_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"CONCILIACION_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"CONCILIACION_SLACK_WEBHOOK_URL"`
}

// LogWebhook receives one summary row per reconciled date.
type LogWebhook struct {
	Url     string            `json:"url" envconfig:"CONCILIACION_LOG_WEBHOOK_URL"`
	Timeout int               `json:"timeout"`
	Headers map[string]string `json:"headers"`
}

type Notification struct {
	Slack      SlackWebhook `json:"slack"`
	LogWebhook LogWebhook   `json:"log_webhook"`
}

// ConverterConfig points at the webhook turning the provider's text export into a workbook.
type ConverterConfig struct {
	Url               string `json:"url" envconfig:"CONCILIACION_CONVERTER_URL"`
	Timeout           int    `json:"timeout"`
	MaxRetryElapsedMs int    `json:"max_retry_elapsed_ms"`
}

// SourceConfig describes one export. Empty fields take the built-in defaults of the source.
type SourceConfig struct {
	Label           string   `json:"label"`
	IDColumn        string   `json:"id_column"`
	AmountColumn    string   `json:"amount_column"`
	DateColumn      string   `json:"date_column"`
	TimestampColumn string   `json:"timestamp_column"`
	HourColumn      string   `json:"hour_column"`
	StatusColumn    string   `json:"status_column"`
	SettledStatuses []string `json:"settled_statuses"`
	TextColumns     []string `json:"text_columns"`
	DropColumns     []string `json:"drop_columns"`
	Suffix          string   `json:"suffix"`
	ApplyWindow     *bool    `json:"apply_window"`
}

type ReconciliationConfig struct {
	JoinKey       string `json:"join_key"`
	AggregateJoin string `json:"aggregate_join" envconfig:"CONCILIACION_AGGREGATE_JOIN"`
	TimeZone      string `json:"time_zone"`
	CutoffHour    *int   `json:"cutoff_hour"`
	LagDays       int    `json:"lag_days" envconfig:"CONCILIACION_LAG_DAYS"`
	// ReportDropColumns are hidden from the discrepancy report; missing ones are ignored.
	ReportDropColumns []string     `json:"report_drop_columns"`
	Ledger            SourceConfig `json:"ledger"`
	Provider          SourceConfig `json:"provider"`
}

type QueueConfig struct {
	SummaryQueue    string `json:"summary_queue"`
	NumberOfWorkers int    `json:"number_of_workers"`
	MaxRetry        int    `json:"max_retry"`
}

type ReportConfig struct {
	CacheTTLSec int `json:"cache_ttl_sec"`
}

type TracingConfig struct {
	Enabled     bool   `json:"enabled" envconfig:"CONCILIACION_TRACING_ENABLED"`
	ServiceName string `json:"service_name"`
}

type Configuration struct {
	ProjectName    string               `json:"project_name" envconfig:"CONCILIACION_PROJECT_NAME"`
	Server         ServerConfig         `json:"server"`
	DataSource     DataSourceConfig     `json:"data_source"`
	Redis          RedisConfig          `json:"redis"`
	Notification   Notification         `json:"notification"`
	Converter      ConverterConfig      `json:"converter"`
	Reconciliation ReconciliationConfig `json:"reconciliation"`
	Queue          QueueConfig          `json:"queue"`
	Report         ReportConfig         `json:"report"`
	RateLimit      RateLimitConfig      `json:"rate_limit"`
	Tracing        TracingConfig        `json:"tracing"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("conciliacion", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called conciliacion.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Conciliacion GMoney"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Converter.Url = strings.TrimSpace(cnf.Converter.Url)
	cnf.Notification.LogWebhook.Url = strings.TrimSpace(cnf.Notification.LogWebhook.Url)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	if cnf.Converter.Url == "" {
		log.Println("Warning: Converter URL is empty. Provider text exports will be rejected.")
	}
	if cnf.Converter.Timeout == 0 {
		cnf.Converter.Timeout = 60
	}
	if cnf.Converter.MaxRetryElapsedMs == 0 {
		cnf.Converter.MaxRetryElapsedMs = 30000
	}
	if cnf.Notification.LogWebhook.Timeout == 0 {
		cnf.Notification.LogWebhook.Timeout = 5
	}

	cnf.Reconciliation.addDefaults()

	if cnf.Queue.SummaryQueue == "" {
		cnf.Queue.SummaryQueue = DEFAULT_SUMMARY_QUEUE
	}
	if cnf.Queue.NumberOfWorkers == 0 {
		cnf.Queue.NumberOfWorkers = 5
	}
	if cnf.Queue.MaxRetry == 0 {
		cnf.Queue.MaxRetry = 5
	}
	if cnf.Report.CacheTTLSec == 0 {
		cnf.Report.CacheTTLSec = 86400
	}
	if cnf.Tracing.ServiceName == "" {
		cnf.Tracing.ServiceName = "conciliacion-gmoney"
	}

	return cnf.validate()
}

func (r *ReconciliationConfig) addDefaults() {
	if r.JoinKey == "" {
		r.JoinKey = DEFAULT_JOIN_KEY
	}
	if r.AggregateJoin == "" {
		r.AggregateJoin = "inner"
	}
	if r.TimeZone == "" {
		r.TimeZone = DEFAULT_TIME_ZONE
	}
	if r.CutoffHour == nil {
		hour := DEFAULT_CUTOFF_HOUR
		r.CutoffHour = &hour
	}
	if r.ReportDropColumns == nil {
		r.ReportDropColumns = []string{
			"operador_dispersion", "estado", "fecha_pagado_rechazado_peru", "itf",
			"comision_destino", "comision_origen", "cci", "yape_id", "bbva_id", "fecha",
			"hora", "Unnamed: 21", "diferencias", "tipo_de_documento", "numero_documento",
			"cliente", "identificativo_mv", "cci_origen", "cci_destino_tarjeta", "importe",
			"importe_comision", "signo_comision", "tipo_transferencia", "fecha_hora", "canal",
			"referencia", "codigo_proceso", "estado_gmoney", "entidad_destino", "filler",
			"dni", "_merge",
		}
	}

	applyWindow, noWindow := true, false
	r.Ledger.fill(SourceConfig{
		Label:           "Metabase",
		IDColumn:        "numero_operacion",
		AmountColumn:    "total",
		DateColumn:      "fecha",
		TimestampColumn: "creacion_deuda_fecha_peru",
		HourColumn:      "hora",
		StatusColumn:    "estado",
		SettledStatuses: []string{"Pagado"},
		TextColumns:     []string{"numero_documento"},
		DropColumns: []string{
			"cus_public_id", "category", "po_public_id", "po_referencia",
			"referencia", "debtor_public_id", "cuenta", "tipo_de_cuenta",
		},
		Suffix:      "_meta",
		ApplyWindow: &applyWindow,
	})
	r.Provider.fill(SourceConfig{
		Label:           "Gmoney",
		IDColumn:        "id_transaccion_cce",
		AmountColumn:    "monto_gmoney",
		DateColumn:      "fecha",
		StatusColumn:    "estado",
		SettledStatuses: []string{"A"},
		Suffix:          "_gmoney",
		ApplyWindow:     &noWindow,
	})
}

// fill copies every unset field from def.
func (s *SourceConfig) fill(def SourceConfig) {
	setString := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	setString(&s.Label, def.Label)
	setString(&s.IDColumn, def.IDColumn)
	setString(&s.AmountColumn, def.AmountColumn)
	setString(&s.DateColumn, def.DateColumn)
	setString(&s.TimestampColumn, def.TimestampColumn)
	setString(&s.HourColumn, def.HourColumn)
	setString(&s.StatusColumn, def.StatusColumn)
	setString(&s.Suffix, def.Suffix)
	if s.SettledStatuses == nil {
		s.SettledStatuses = def.SettledStatuses
	}
	if s.TextColumns == nil {
		s.TextColumns = def.TextColumns
	}
	if s.DropColumns == nil {
		s.DropColumns = def.DropColumns
	}
	if s.ApplyWindow == nil {
		s.ApplyWindow = def.ApplyWindow
	}
}

func (cnf *Configuration) validate() error {
	return validation.ValidateStruct(cnf,
		validation.Field(&cnf.Converter, validation.By(func(interface{}) error {
			return validation.ValidateStruct(&cnf.Converter,
				validation.Field(&cnf.Converter.Url, is.URL),
				validation.Field(&cnf.Converter.Timeout, validation.Min(1)),
			)
		})),
		validation.Field(&cnf.Notification, validation.By(func(interface{}) error {
			return validation.ValidateStruct(&cnf.Notification.LogWebhook,
				validation.Field(&cnf.Notification.LogWebhook.Url, is.URL),
			)
		})),
		validation.Field(&cnf.Reconciliation, validation.By(func(interface{}) error {
			r := &cnf.Reconciliation
			return validation.ValidateStruct(r,
				validation.Field(&r.AggregateJoin, validation.In("inner", "outer")),
				validation.Field(&r.CutoffHour, validation.Min(0), validation.Max(23)),
				validation.Field(&r.LagDays, validation.Min(0)),
			)
		})),
	)
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
