package discovery

import (
	"fmt"
	"slices"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT records for info.
func EncodeTXT(info *Info) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyVersion: ProtocolVersion,
		TXTKeyNodeID:  info.NodeID,
	}
	if info.TLS {
		txt[TXTKeyTLS] = "1"
	}
	if len(info.Methods) > 0 {
		methods := slices.Clone(info.Methods)
		slices.Sort(methods)
		txt[TXTKeyMethods] = strings.Join(methods, ",")
	}
	return txt
}

// DecodeTXT parses TXT records of a discovered listener.
func DecodeTXT(txt TXTRecordMap) (*Info, error) {
	v, ok := txt[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	if v != ProtocolVersion {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, v)
	}

	info := &Info{}
	if info.NodeID, ok = txt[TXTKeyNodeID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyNodeID)
	}

	switch txt[TXTKeyTLS] {
	case "", "0":
	case "1":
		info.TLS = true
	default:
		return nil, fmt.Errorf("%w: %s=%s", ErrInvalidTXTRecord, TXTKeyTLS, txt[TXTKeyTLS])
	}

	if m := txt[TXTKeyMethods]; m != "" {
		info.Methods = strings.Split(m, ",")
	}
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	slices.Sort(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if k == "" {
			continue
		}
		if !found {
			// Key without value (boolean flag)
			v = ""
		}
		txt[k] = v
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return ErrEmptyInstanceName
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
