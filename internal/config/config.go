package config

import (
	"time"

	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

// Version defines the ChirpStack Telemetry Ingester version.
var Version string

// Config defines the configuration structure.
type Config struct {
	General struct {
		LogLevel    int  `mapstructure:"log_level"`
		LogToSyslog bool `mapstructure:"log_to_syslog"`
	} `mapstructure:"general"`

	PostgreSQL struct {
		DSN                string `mapstructure:"dsn"`
		Automigrate        bool   `mapstructure:"automigrate"`
		MaxOpenConnections int    `mapstructure:"max_open_connections"`
		MaxIdleConnections int    `mapstructure:"max_idle_connections"`
	} `mapstructure:"postgresql"`

	Redis struct {
		URL        string   `mapstructure:"url"` // deprecated
		Servers    []string `mapstructure:"servers"`
		Cluster    bool     `mapstructure:"cluster"`
		MasterName string   `mapstructure:"master_name"`
		PoolSize   int      `mapstructure:"pool_size"`
		Password   string   `mapstructure:"password"`
		Database   int      `mapstructure:"database"`
		TLSEnabled bool     `mapstructure:"tls_enabled"`
		KeyPrefix  string   `mapstructure:"key_prefix"`
	} `mapstructure:"redis"`

	Decoder Decoder `mapstructure:"decoder"`

	KeyStore KeyStore `mapstructure:"keystore"`

	Source struct {
		Type         string       `mapstructure:"type"`
		RedisStream  RedisStream  `mapstructure:"redis_stream"`
		DeviceStream DeviceStream `mapstructure:"device_stream"`
	} `mapstructure:"source"`

	Sink struct {
		Type       string         `mapstructure:"type"`
		PostgreSQL PostgreSQLSink `mapstructure:"postgresql"`
		MQTT       MQTTSink       `mapstructure:"mqtt"`
		AMQP       AMQPSink       `mapstructure:"amqp"`
		GCPPubSub  GCPPubSubSink  `mapstructure:"gcp_pub_sub"`

		AzureServiceBus AzureServiceBusSink `mapstructure:"azure_service_bus"`
		InfluxDB        InfluxDBSink        `mapstructure:"influxdb"`
	} `mapstructure:"sink"`

	Formatter struct {
		UplinkSummary bool `mapstructure:"uplink_summary"`
	} `mapstructure:"formatter"`

	Metrics struct {
		Timezone string `mapstructure:"timezone"`
		Redis    struct {
			AggregationIntervals []string      `mapstructure:"aggregation_intervals"`
			MinuteAggregationTTL time.Duration `mapstructure:"minute_aggregation_ttl"`
			HourAggregationTTL   time.Duration `mapstructure:"hour_aggregation_ttl"`
			DayAggregationTTL    time.Duration `mapstructure:"day_aggregation_ttl"`
			MonthAggregationTTL  time.Duration `mapstructure:"month_aggregation_ttl"`
		} `mapstructure:"redis"`
	} `mapstructure:"metrics"`

	Monitoring struct {
		Bind                         string `mapstructure:"bind"`
		PrometheusEndpoint           bool   `mapstructure:"prometheus_endpoint"`
		PrometheusAPITimingHistogram bool   `mapstructure:"prometheus_api_timing_histogram"`
		HealthcheckEndpoint          bool   `mapstructure:"healthcheck_endpoint"`
	} `mapstructure:"monitoring"`
}

// Decoder holds the PHYPayload decoder settings.
type Decoder struct {
	DecodeMACCommands   bool `mapstructure:"decode_mac_commands"`
	DecodeFRMPayload    bool `mapstructure:"decode_frm_payload"`
	PlaintextFRMPayload bool `mapstructure:"plaintext_frm_payload"`
}

// KeyStore holds the session-key store settings.
type KeyStore struct {
	// Type is either static, redis or none.
	Type string `mapstructure:"type"`

	// KEK is the (optional) key-encryption key used to unwrap the
	// configured session-keys (RFC 3394).
	KEK string `mapstructure:"kek"`

	// MaxFCntGap is the maximum frame-counter increment accepted when
	// tracking the frame-counters of the static session-keys.
	MaxFCntGap uint32 `mapstructure:"max_fcnt_gap"`

	Static []StaticSessionKeys `mapstructure:"static"`
}

// StaticSessionKeys holds a configured set of session-keys for a DevAddr.
type StaticSessionKeys struct {
	DevAddr     lorawan.DevAddr `mapstructure:"dev_addr"`
	FNwkSIntKey string          `mapstructure:"f_nwk_s_int_key"`
	NwkSEncKey  string          `mapstructure:"nwk_s_enc_key"`
	AppSKey     string          `mapstructure:"app_s_key"`
	FCntUp      uint32          `mapstructure:"f_cnt_up"`
	FCntDown    uint32          `mapstructure:"f_cnt_down"`
}

// RedisStream holds the frame-log Redis Stream source settings.
type RedisStream struct {
	Key     string        `mapstructure:"key"`
	StartID string        `mapstructure:"start_id"`
	Block   time.Duration `mapstructure:"block"`
	Count   int64         `mapstructure:"count"`
}

// DeviceStream holds the per-device frame-log stream source settings.
type DeviceStream struct {
	MQTT struct {
		Server       string `mapstructure:"server"`
		Username     string `mapstructure:"username"`
		Password     string `mapstructure:"password"`
		QOS          uint8  `mapstructure:"qos"`
		CleanSession bool   `mapstructure:"clean_session"`
		ClientID     string `mapstructure:"client_id"`
		CACert       string `mapstructure:"ca_cert"`
		TLSCert      string `mapstructure:"tls_cert"`
		TLSKey       string `mapstructure:"tls_key"`
		EventTopic   string `mapstructure:"event_topic"`
	} `mapstructure:"mqtt"`

	NetworkServer struct {
		Server    string `mapstructure:"server"`
		TokenFile string `mapstructure:"token_file"`
		CACert    string `mapstructure:"ca_cert"`
		TLSCert   string `mapstructure:"tls_cert"`
		TLSKey    string `mapstructure:"tls_key"`
	} `mapstructure:"network_server"`

	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
	StreamTimeout     time.Duration `mapstructure:"stream_timeout"`

	// MaxBacklogAge is the max. age of the frame-logs returned when the
	// device stream is opened. Older frame-logs are skipped.
	MaxBacklogAge time.Duration `mapstructure:"max_backlog_age"`
}

// PostgreSQLSink holds the PostgreSQL sink settings.
type PostgreSQLSink struct {
	Table string `mapstructure:"table"`
}

// MQTTSink holds the MQTT sink settings.
type MQTTSink struct {
	Server        string `mapstructure:"server"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	QOS           uint8  `mapstructure:"qos"`
	CleanSession  bool   `mapstructure:"clean_session"`
	ClientID      string `mapstructure:"client_id"`
	CACert        string `mapstructure:"ca_cert"`
	TLSCert       string `mapstructure:"tls_cert"`
	TLSKey        string `mapstructure:"tls_key"`
	TopicTemplate string `mapstructure:"topic_template"`
}

// AMQPSink holds the AMQP sink settings.
type AMQPSink struct {
	URL                string `mapstructure:"url"`
	Exchange           string `mapstructure:"exchange"`
	RoutingKeyTemplate string `mapstructure:"routing_key_template"`
}

// GCPPubSubSink holds the Google Cloud Pub/Sub sink settings.
type GCPPubSubSink struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	ProjectID       string `mapstructure:"project_id"`
	TopicName       string `mapstructure:"topic_name"`
}

// AzureServiceBusSink holds the Azure Service Bus sink settings.
type AzureServiceBusSink struct {
	ConnectionString string `mapstructure:"connection_string"`
	Topic            string `mapstructure:"topic"`
}

// InfluxDBSink holds the InfluxDB (v2 API) sink settings.
type InfluxDBSink struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

// C holds the global configuration.
var C Config
