package formatter

import (
	"encoding/hex"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/brocaar/chirpstack-api/go/v3/common"
	"github.com/brocaar/chirpstack-api/go/v3/gw"
	"github.com/brocaar/chirpstack-api/go/v3/ns"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/decoder"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/framelog"
	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

func TestFormatter(t *testing.T) {
	devEUI := lorawan.EUI64{8, 7, 6, 5, 4, 3, 2, 1}
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	// unconfirmed data-up, FPort 10, FRMPayload 01020304 (plaintext)
	phyBytes, _ := hex.DecodeString("4004030201000a000a0102030401020304")

	Convey("Given an uplink frame-log received by two gateways", t, func() {
		fl := framelog.FrameLog{
			ID:     "1577836800000-0",
			Time:   ts,
			DevEUI: devEUI,
			UplinkFrame: &ns.UplinkFrameLog{
				PhyPayload: phyBytes,
				TxInfo: &gw.UplinkTXInfo{
					Frequency:  868100000,
					Modulation: common.Modulation_LORA,
				},
				RxInfo: []*gw.UplinkRXInfo{
					{GatewayId: []byte{1, 1, 1, 1, 1, 1, 1, 1}, Rssi: -60, LoraSnr: 5.5},
					{GatewayId: []byte{2, 2, 2, 2, 2, 2, 2, 2}, Rssi: -100, LoraSnr: -2.5},
				},
				MType:  common.MType_UnconfirmedDataUp,
				DevEui: devEUI[:],
			},
		}

		res, err := decoder.Decode(phyBytes, decoder.Options{
			DecodeFRMPayload:    true,
			PlaintextFRMPayload: true,
		})
		So(err, ShouldBeNil)

		Convey("When formatting without uplink summary", func() {
			records, err := Formatter{}.Format(fl, res, nil)
			So(err, ShouldBeNil)

			Convey("Then one record per rx-info is returned", func() {
				So(records, ShouldHaveLength, 2)

				for _, r := range records {
					So(r.Measurement, ShouldEqual, MeasurementUplink)
					So(r.Time, ShouldEqual, ts)
					So(r.DevEUI, ShouldEqual, devEUI)
					So(r.FieldTypes, ShouldResemble, map[string]string{
						FieldRSSI: FieldTypeFloat,
						FieldSNR:  FieldTypeFloat,
					})
				}
			})

			Convey("Then the rssi and snr are fields", func() {
				So(records[0].Fields, ShouldResemble, map[string]interface{}{
					FieldRSSI: float64(-60),
					FieldSNR:  5.5,
				})
				So(records[1].Fields, ShouldResemble, map[string]interface{}{
					FieldRSSI: float64(-100),
					FieldSNR:  -2.5,
				})
				So(records[0].Tags, ShouldNotContainKey, FieldRSSI)
				So(records[0].Tags, ShouldNotContainKey, FieldSNR)
			})

			Convey("Then the tags contain the flattened frame-log", func() {
				tags := records[0].Tags
				So(tags["dev_eui"], ShouldEqual, "0807060504030201")
				So(tags["log_id"], ShouldEqual, "1577836800000-0")
				So(tags["m_type"], ShouldEqual, "UnconfirmedDataUp")
				So(tags["rx_info.gateway_id"], ShouldEqual, "AQEBAQEBAQE=")
				So(records[1].Tags["rx_info.gateway_id"], ShouldEqual, "AgICAgICAgI=")
				So(tags["tx_info.frequency"], ShouldEqual, float64(868100000))
				So(tags["phy_payload.mhdr.m_type"], ShouldEqual, "UnconfirmedDataUp")
				So(tags["phy_payload.mac_payload.f_port"], ShouldEqual, float64(10))
				So(tags["phy_payload.mac_payload.fhdr.dev_addr"], ShouldEqual, "01020304")
				So(tags["phy_payload.mic"], ShouldEqual, "01020304")
				So(tags, ShouldNotContainKey, "diagnostics.frm_payload")
			})
		})

		Convey("When formatting with uplink summary", func() {
			records, err := Formatter{UplinkSummary: true}.Format(fl, res, nil)
			So(err, ShouldBeNil)

			Convey("Then a summary record is added", func() {
				So(records, ShouldHaveLength, 3)

				r := records[2]
				So(r.Measurement, ShouldEqual, MeasurementUplinkSummary)
				So(r.Fields["rx_count"], ShouldEqual, 2)
				So(r.Fields["rssi_max"], ShouldEqual, float64(-60))
				So(r.Fields["rssi_mean"], ShouldEqual, float64(-80))
				So(r.Fields["lora_snr_max"], ShouldEqual, 5.5)
				So(r.Fields["lora_snr_mean"], ShouldEqual, 1.5)
				So(r.FieldTypes["rx_count"], ShouldEqual, FieldTypeInteger)
				So(r.Tags, ShouldNotContainKey, "rx_info.gateway_id")
			})
		})

		Convey("When the frame-log does not contain rx-info", func() {
			fl.UplinkFrame.RxInfo = nil
			records, err := Formatter{UplinkSummary: true}.Format(fl, res, nil)
			So(err, ShouldBeNil)

			Convey("Then no records are returned", func() {
				So(records, ShouldHaveLength, 0)
			})
		})

		Convey("When a secondary pass failed", func() {
			res.Diagnostics = []decoder.Diagnostic{
				{Pass: decoder.PassFRMPayload, Err: lorawan.ErrKeyUnavailable},
			}
			records, err := Formatter{}.Format(fl, res, nil)
			So(err, ShouldBeNil)

			Convey("Then the diagnostic is added as tag", func() {
				So(records[0].Tags["diagnostics.frm_payload"], ShouldEqual, lorawan.ErrKeyUnavailable.Error())
			})
		})

		Convey("When the PHYPayload could not be decoded", func() {
			records, err := Formatter{}.Format(fl, decoder.Result{}, errors.New("decode phypayload error"))
			So(err, ShouldBeNil)

			Convey("Then the raw PHYPayload and the error are added as tags", func() {
				So(records, ShouldHaveLength, 2)
				So(records[0].Tags["phy_payload"], ShouldEqual, "4004030201000a000a0102030401020304")
				So(records[0].Tags["decode_error"], ShouldEqual, "decode phypayload error")
			})
		})
	})

	Convey("Given a downlink frame-log", t, func() {
		fl := framelog.FrameLog{
			Time:   ts,
			DevEUI: devEUI,
			DownlinkFrame: &ns.DownlinkFrameLog{
				PhyPayload: []byte{0x60, 0x04, 0x03, 0x02, 0x01, 0x00, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04},
				TxInfo: &gw.DownlinkTXInfo{
					Frequency: 869525000,
					Power:     14,
				},
				GatewayId: []byte{1, 2, 3, 4, 5, 6, 7, 8},
				MType:     common.MType_UnconfirmedDataDown,
			},
		}

		res, err := decoder.Decode(fl.PHYPayload(), decoder.Options{})
		So(err, ShouldBeNil)

		Convey("When formatting", func() {
			records, err := Formatter{UplinkSummary: true}.Format(fl, res, nil)
			So(err, ShouldBeNil)

			Convey("Then a single record is returned", func() {
				So(records, ShouldHaveLength, 1)
				So(records[0].Measurement, ShouldEqual, MeasurementDownlink)
				So(records[0].Fields, ShouldResemble, map[string]interface{}{"value": 1})
				So(records[0].Tags["gateway_id"], ShouldEqual, "0102030405060708")
				So(records[0].Tags["m_type"], ShouldEqual, "UnconfirmedDataDown")
				So(records[0].Tags["tx_info.power"], ShouldEqual, float64(14))
				So(records[0].Tags["phy_payload.mhdr.m_type"], ShouldEqual, "UnconfirmedDataDown")
			})
		})
	})

	Convey("Given an empty frame-log", t, func() {
		Convey("Then formatting returns an error", func() {
			_, err := Formatter{}.Format(framelog.FrameLog{}, decoder.Result{}, nil)
			So(err, ShouldNotBeNil)
		})
	})
}
