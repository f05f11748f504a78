// Package lorawan implements the decoding of LoRaWAN PHYPayloads.
//
// Parse decodes the frame structure and keeps the FOpts and FRMPayload
// regions as received (*DataPayload). These regions can be decoded further
// with DecodeFOptsToMACCommands, DecryptFRMPayload and DecodeFRMPayload.
// Each of these either replaces the region as a whole, or leaves it
// untouched and returns an error.
package lorawan
