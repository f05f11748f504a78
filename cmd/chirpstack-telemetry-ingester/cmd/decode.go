package cmd

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/decoder"
	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

type decodeFlags struct {
	fOpts         bool
	frmPayload    bool
	plaintext     bool
	validateMIC   bool
	devAddr       string
	appSKey       string
	nwkSEncKey    string
	fNwkSIntKey   string
	fCnt          uint32
	nwkKey        string
	joinAcceptKey string
}

type decodeOutput struct {
	PHYPayload  *lorawan.PHYPayload  `json:"phyPayload"`
	Diagnostics []decoder.Diagnostic `json:"diagnostics,omitempty"`
	MICValid    *bool                `json:"micValid,omitempty"`
}

var decodeArgs decodeFlags

var decodeCmd = &cobra.Command{
	Use:   "decode [hex or base64 encoded PHYPayload]",
	Short: "Decode the given PHYPayload and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := decodePHYPayload(args[0], decodeArgs)
		if err != nil {
			return err
		}

		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return errors.Wrap(err, "marshal json error")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	},
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeArgs.fOpts, "f-opts", true, "decode the FOpts mac-commands")
	decodeCmd.Flags().BoolVar(&decodeArgs.frmPayload, "frm-payload", true, "decode the FRMPayload")
	decodeCmd.Flags().BoolVar(&decodeArgs.plaintext, "plaintext", false, "the FRMPayload is not encrypted")
	decodeCmd.Flags().BoolVar(&decodeArgs.validateMIC, "validate-mic", false, "validate the MIC (requires --f-nwk-s-int-key, or --nwk-key for a join-request)")
	decodeCmd.Flags().StringVar(&decodeArgs.devAddr, "dev-addr", "", "only use the session-keys for this DevAddr (optional)")
	decodeCmd.Flags().StringVar(&decodeArgs.appSKey, "app-s-key", "", "AppSKey (hex encoded)")
	decodeCmd.Flags().StringVar(&decodeArgs.nwkSEncKey, "nwk-s-enc-key", "", "NwkSEncKey, used for the mac-commands in the FRMPayload (hex encoded)")
	decodeCmd.Flags().StringVar(&decodeArgs.fNwkSIntKey, "f-nwk-s-int-key", "", "FNwkSIntKey, used for the MIC validation (hex encoded)")
	decodeCmd.Flags().Uint32Var(&decodeArgs.fCnt, "f-cnt", 0, "last known 32 bit frame-counter")
	decodeCmd.Flags().StringVar(&decodeArgs.nwkKey, "nwk-key", "", "AppKey (LoRaWAN 1.0) or NwkKey (LoRaWAN 1.1), used for the join-request MIC validation (hex encoded)")
	decodeCmd.Flags().StringVar(&decodeArgs.joinAcceptKey, "join-accept-key", "", "AppKey or NwkKey to decrypt a join-accept (hex encoded)")
}

func decodePHYPayload(input string, flags decodeFlags) (decodeOutput, error) {
	var out decodeOutput

	b, err := decodeInput(input)
	if err != nil {
		return out, err
	}

	ks, sk, err := flags.keyStore()
	if err != nil {
		return out, err
	}

	if flags.validateMIC {
		phy, err := lorawan.Parse(b)
		if err != nil {
			return out, errors.Wrap(err, "decode phypayload error")
		}
		valid, err := flags.validatePHYPayloadMIC(phy, sk)
		if err != nil {
			return out, errors.Wrap(err, "validate mic error")
		}
		out.MICValid = &valid
	}

	res, err := decoder.Decode(b, decoder.Options{
		DecodeMACCommands:   flags.fOpts,
		DecodeFRMPayload:    flags.frmPayload,
		PlaintextFRMPayload: flags.plaintext,
		KeyStore:            ks,
	})
	if err != nil {
		return out, err
	}
	out.PHYPayload = res.PHYPayload
	out.Diagnostics = res.Diagnostics

	if flags.joinAcceptKey != "" && res.PHYPayload.MHDR.MType == lorawan.JoinAccept {
		var key lorawan.AES128Key
		if err := key.UnmarshalText([]byte(flags.joinAcceptKey)); err != nil {
			return out, errors.Wrap(err, "decode join-accept key error")
		}
		if err := res.PHYPayload.DecryptJoinAcceptPayload(key); err != nil {
			return out, errors.Wrap(err, "decrypt join-accept error")
		}
	}

	return out, nil
}

// validatePHYPayloadMIC validates the MIC of a join-request using the
// --nwk-key and of a data frame using the session-keys.
func (f decodeFlags) validatePHYPayloadMIC(phy *lorawan.PHYPayload, sk lorawan.SessionKeys) (bool, error) {
	if phy.MHDR.MType != lorawan.JoinRequest {
		return phy.ValidateMIC(sk)
	}

	if f.nwkKey == "" {
		return false, errors.New("nwk-key is required to validate a join-request")
	}

	var key lorawan.AES128Key
	if err := key.UnmarshalText([]byte(f.nwkKey)); err != nil {
		return false, errors.Wrap(err, "decode nwk-key error")
	}
	return phy.ValidateJoinRequestMIC(key)
}

// keyStore returns a key-store serving the session-keys given as flags.
// A nil KeyStore is returned when no keys are given.
func (f decodeFlags) keyStore() (lorawan.KeyStore, lorawan.SessionKeys, error) {
	sk := lorawan.SessionKeys{
		FCntUp:   f.fCnt,
		FCntDown: f.fCnt,
	}

	for _, k := range []struct {
		name  string
		value string
		key   *lorawan.AES128Key
	}{
		{"app-s-key", f.appSKey, &sk.AppSKey},
		{"nwk-s-enc-key", f.nwkSEncKey, &sk.NwkSEncKey},
		{"f-nwk-s-int-key", f.fNwkSIntKey, &sk.FNwkSIntKey},
	} {
		if k.value == "" {
			continue
		}
		if err := k.key.UnmarshalText([]byte(k.value)); err != nil {
			return nil, sk, errors.Wrapf(err, "decode %s error", k.name)
		}
	}

	var devAddr *lorawan.DevAddr
	if f.devAddr != "" {
		devAddr = &lorawan.DevAddr{}
		if err := devAddr.UnmarshalText([]byte(f.devAddr)); err != nil {
			return nil, sk, errors.Wrap(err, "decode dev-addr error")
		}
	}

	if f.appSKey == "" && f.nwkSEncKey == "" {
		return nil, sk, nil
	}

	return lorawan.KeyStoreFunc(func(addr lorawan.DevAddr) (lorawan.SessionKeys, error) {
		if devAddr != nil && *devAddr != addr {
			return lorawan.SessionKeys{}, errors.Wrapf(lorawan.ErrKeyUnavailable, "dev_addr: %s", addr)
		}
		return sk, nil
	}), sk, nil
}

func decodeInput(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := hex.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("phypayload must be hex or base64 encoded")
	}
	return b, nil
}
