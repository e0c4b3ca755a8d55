package discovery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rf24node/rf24node-go/pkg/address"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT builds the TXT records of a node. addr is omitted when it is
// not a tree address.
func EncodeTXT(id string, addr address.Logical) TXTRecordMap {
	txt := TXTRecordMap{TXTKeyID: id}
	if addr.IsValid() {
		txt[TXTKeyAddress] = strconv.FormatUint(uint64(addr), 10)
	}
	return txt
}

// DecodeTXT parses the TXT records of a node. The address is
// address.Invalid when the node advertised none.
func DecodeTXT(txt TXTRecordMap) (id string, addr address.Logical, err error) {
	id, ok := txt[TXTKeyID]
	if !ok || id == "" {
		return "", address.Invalid, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyID)
	}
	s, ok := txt[TXTKeyAddress]
	if !ok {
		return id, address.Invalid, nil
	}
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return "", address.Invalid, fmt.Errorf("%w: %s=%q", ErrInvalidTXT, TXTKeyAddress, s)
	}
	addr = address.Logical(v)
	if !addr.IsValid() {
		return "", address.Invalid, fmt.Errorf("%w: %s=%q", ErrInvalidTXT, TXTKeyAddress, s)
	}
	return id, addr, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}
