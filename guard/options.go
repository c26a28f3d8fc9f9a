// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package guard

import "fmt"

// FromOptions builds a Policy from a loosely-typed option map, the
// construction surface for callers that receive policy settings as
// data (config files, RPC parameters) rather than as Go code. Both
// long-form keys and the short aliases are accepted:
//
//	block_network      (alias no_network)      bool
//	block_subprocess   (alias no_subprocess)   bool
//	fs_readonly                                bool
//	fs_root                                    string
//	block_native_load                          bool
//	allow_localhost                            bool
//	allow_domains                              []string
//	trace                                      bool
//
// An unrecognized key or a value of the wrong type fails with an
// *OptionError naming the key. The returned Policy is normalized.
func FromOptions(options map[string]any) (Policy, error) {
	var p Policy
	for key, value := range options {
		var err error
		switch key {
		case "block_network", "no_network":
			p.BlockNetwork, err = boolOption(key, value)
		case "block_subprocess", "no_subprocess":
			p.BlockSubprocess, err = boolOption(key, value)
		case "fs_readonly":
			p.FSReadonly, err = boolOption(key, value)
		case "fs_root":
			p.FSRoot, err = stringOption(key, value)
		case "block_native_load":
			p.BlockNativeLoad, err = boolOption(key, value)
		case "allow_localhost":
			p.AllowLocalhost, err = boolOption(key, value)
		case "allow_domains":
			p.AllowDomains, err = stringListOption(key, value)
		case "trace":
			p.Trace, err = boolOption(key, value)
		default:
			return Policy{}, &OptionError{Key: key, Detail: "unknown option"}
		}
		if err != nil {
			return Policy{}, err
		}
	}
	return p.Normalize(), nil
}

func boolOption(key string, value any) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, &OptionError{Key: key, Detail: fmt.Sprintf("expected bool, got %T", value)}
	}
	return b, nil
}

func stringOption(key string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", &OptionError{Key: key, Detail: fmt.Sprintf("expected string, got %T", value)}
	}
	return s, nil
}

func stringListOption(key string, value any) ([]string, error) {
	switch list := value.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, element := range list {
			s, ok := element.(string)
			if !ok {
				return nil, &OptionError{
					Key:    key,
					Detail: fmt.Sprintf("expected list of strings, got %T element", element),
				}
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, &OptionError{Key: key, Detail: fmt.Sprintf("expected list of strings, got %T", value)}
	}
}
