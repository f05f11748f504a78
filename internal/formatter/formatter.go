// Package formatter implements the conversion of decoded frame-logs into
// time-series records.
package formatter

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/decoder"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/framelog"
	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

// Measurements.
const (
	MeasurementUplink        = "device_uplink_frame_log"
	MeasurementDownlink      = "device_downlink_frame_log"
	MeasurementUplinkSummary = "device_uplink_summary"
)

// Field types.
const (
	FieldTypeFloat   = "float"
	FieldTypeInteger = "integer"
)

// Uplink fields, these are moved from the tags to the fields.
const (
	FieldRSSI = "rx_info.rssi"
	FieldSNR  = "rx_info.lora_snr"
)

var uplinkFields = []string{FieldRSSI, FieldSNR}

// Record holds a single time-series record.
type Record struct {
	Time        time.Time              `json:"time"`
	Measurement string                 `json:"measurement"`
	DevEUI      lorawan.EUI64          `json:"devEUI"`
	Tags        map[string]interface{} `json:"tags"`
	Fields      map[string]interface{} `json:"fields"`
	FieldTypes  map[string]string      `json:"fieldTypes"`
}

func newRecord(fl framelog.FrameLog, measurement string, tags map[string]interface{}) Record {
	ts := fl.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	return Record{
		Time:        ts,
		Measurement: measurement,
		DevEUI:      fl.DevEUI,
		Tags:        tags,
		Fields:      make(map[string]interface{}),
		FieldTypes:  make(map[string]string),
	}
}

// Formatter formats frame-logs into records.
type Formatter struct {
	// UplinkSummary adds a summary record per uplink, aggregating the
	// rx-info of all the receiving gateways.
	UplinkSummary bool
}

// Format returns the records for the given frame-log and decode result.
// decodeErr holds the structural decode error (if any), in which case the
// raw PHYPayload is used.
func (f Formatter) Format(fl framelog.FrameLog, res decoder.Result, decodeErr error) ([]Record, error) {
	base, err := baseTags(fl, res, decodeErr)
	if err != nil {
		return nil, err
	}

	if fl.UplinkFrame != nil {
		return f.uplinkRecords(fl, base)
	}
	if fl.DownlinkFrame != nil {
		return downlinkRecords(fl, base), nil
	}

	return nil, errors.New("frame-log is empty")
}

func baseTags(fl framelog.FrameLog, res decoder.Result, decodeErr error) (map[string]interface{}, error) {
	data := map[string]interface{}{
		"dev_eui": fl.DevEUI.String(),
	}
	if fl.ID != "" {
		data["log_id"] = fl.ID
	}

	if res.PHYPayload != nil {
		b, err := json.Marshal(res.PHYPayload)
		if err != nil {
			return nil, errors.Wrap(err, "marshal phypayload error")
		}
		var phy map[string]interface{}
		if err := json.Unmarshal(b, &phy); err != nil {
			return nil, errors.Wrap(err, "unmarshal phypayload error")
		}
		data["phy_payload"] = phy
	} else {
		data["phy_payload"] = hex.EncodeToString(fl.PHYPayload())
	}

	if decodeErr != nil {
		data["decode_error"] = decodeErr.Error()
	}
	if len(res.Diagnostics) != 0 {
		diag := make(map[string]interface{})
		for _, d := range res.Diagnostics {
			diag[string(d.Pass)] = d.Err.Error()
		}
		data["diagnostics"] = diag
	}

	if fl.UplinkFrame != nil {
		data["m_type"] = fl.UplinkFrame.MType.String()
	} else if fl.DownlinkFrame != nil {
		data["m_type"] = fl.DownlinkFrame.MType.String()
		data["gateway_id"] = hex.EncodeToString(fl.DownlinkFrame.GatewayId)
	}

	txInfo, err := marshalTXInfo(fl)
	if err != nil {
		return nil, err
	}
	if txInfo != nil {
		data["tx_info"] = txInfo
	}

	return flatten(data), nil
}

func marshalTXInfo(fl framelog.FrameLog) (map[string]interface{}, error) {
	var (
		m   map[string]interface{}
		err error
	)

	if fl.UplinkFrame != nil && fl.UplinkFrame.TxInfo != nil {
		m, err = framelog.MarshalMap(fl.UplinkFrame.TxInfo)
	} else if fl.DownlinkFrame != nil && fl.DownlinkFrame.TxInfo != nil {
		m, err = framelog.MarshalMap(fl.DownlinkFrame.TxInfo)
	}
	if err != nil {
		return nil, errors.Wrap(err, "marshal tx-info error")
	}

	return m, nil
}

func (f Formatter) uplinkRecords(fl framelog.FrameLog, base map[string]interface{}) ([]Record, error) {
	var out []Record
	var rssi, snr []float64

	for _, rxInfo := range fl.UplinkFrame.RxInfo {
		rx, err := framelog.MarshalMap(rxInfo)
		if err != nil {
			return nil, errors.Wrap(err, "marshal rx-info error")
		}

		tags := copyMap(base)
		for k, v := range flatten(rx) {
			tags["rx_info."+k] = v
		}

		r := newRecord(fl, MeasurementUplink, tags)
		for _, field := range uplinkFields {
			v, ok := r.Tags[field]
			if !ok {
				log.WithFields(log.Fields{
					"field":   field,
					"dev_eui": fl.DevEUI,
				}).Warning("formatter: field not found in uplink data")
			}
			delete(r.Tags, field)

			fv, isFloat := toFloat(v)
			if isFloat {
				r.Fields[field] = fv
			} else {
				r.Fields[field] = v
			}
			r.FieldTypes[field] = FieldTypeFloat

			if isFloat {
				switch field {
				case FieldRSSI:
					rssi = append(rssi, fv)
				case FieldSNR:
					snr = append(snr, fv)
				}
			}
		}

		out = append(out, r)
	}

	if f.UplinkSummary && len(fl.UplinkFrame.RxInfo) != 0 {
		out = append(out, uplinkSummaryRecord(fl, base, len(fl.UplinkFrame.RxInfo), rssi, snr))
	}

	return out, nil
}

func uplinkSummaryRecord(fl framelog.FrameLog, base map[string]interface{}, rxCount int, rssi, snr []float64) Record {
	r := newRecord(fl, MeasurementUplinkSummary, copyMap(base))
	r.Fields["rx_count"] = rxCount
	r.FieldTypes["rx_count"] = FieldTypeInteger

	if len(rssi) != 0 {
		r.Fields["rssi_max"] = floats.Max(rssi)
		r.Fields["rssi_mean"] = stat.Mean(rssi, nil)
		r.FieldTypes["rssi_max"] = FieldTypeFloat
		r.FieldTypes["rssi_mean"] = FieldTypeFloat
	}

	if len(snr) != 0 {
		r.Fields["lora_snr_max"] = floats.Max(snr)
		r.Fields["lora_snr_mean"] = stat.Mean(snr, nil)
		r.FieldTypes["lora_snr_max"] = FieldTypeFloat
		r.FieldTypes["lora_snr_mean"] = FieldTypeFloat
	}

	return r
}

func downlinkRecords(fl framelog.FrameLog, base map[string]interface{}) []Record {
	r := newRecord(fl, MeasurementDownlink, base)
	r.Fields["value"] = 1
	r.FieldTypes["value"] = FieldTypeInteger
	return []Record{r}
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
