// halo: a haplotype-based variant caller for sequencing pipelines.
// Copyright (c) 2026 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/halo/blob/master/LICENSE.txt>.

package vcf

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

func formatNumber(number int32) string {
	switch number {
	case NumberA:
		return "A"
	case NumberR:
		return "R"
	case NumberG:
		return "G"
	case NumberDot:
		return "."
	default:
		return strconv.FormatInt(int64(number), 10)
	}
}

func formatType(t Type) string {
	switch t {
	case Integer:
		return "Integer"
	case Float:
		return "Float"
	case Flag:
		return "Flag"
	case Character:
		return "Character"
	default:
		return "String"
	}
}

func formatFormatInformation(w io.Writer, kind string, info *FormatInformation) {
	fmt.Fprintf(w, "##%s=<ID=%s,Number=%s,Type=%s,Description=\"%s\">\n",
		kind, *info.ID, formatNumber(info.Number), formatType(info.Type), info.Description)
}

// Format writes the header section to w.
func (hdr *Header) Format(w io.Writer) {
	fmt.Fprintln(w, hdr.FileFormat)
	keys := make([]string, 0, len(hdr.Meta))
	for key := range hdr.Meta {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, meta := range hdr.Meta[key] {
			switch m := meta.(type) {
			case string:
				fmt.Fprintf(w, "##%s=%s\n", key, m)
			case *MetaInformation:
				var sb strings.Builder
				fmt.Fprintf(&sb, "##%s=<ID=%s", key, *m.ID)
				fieldKeys := make([]string, 0, len(m.Fields))
				for fieldKey := range m.Fields {
					fieldKeys = append(fieldKeys, fieldKey)
				}
				sort.Strings(fieldKeys)
				for _, fieldKey := range fieldKeys {
					fmt.Fprintf(&sb, ",%s=%s", fieldKey, m.Fields[fieldKey])
				}
				if m.Description != "" {
					fmt.Fprintf(&sb, ",Description=\"%s\"", m.Description)
				}
				sb.WriteString(">")
				fmt.Fprintln(w, sb.String())
			}
		}
	}
	for _, info := range hdr.Infos {
		formatFormatInformation(w, "INFO", info)
	}
	for _, format := range hdr.Formats {
		formatFormatInformation(w, "FORMAT", format)
	}
	fmt.Fprintln(w, "#"+strings.Join(hdr.Columns, "\t"))
}

func appendInfoValue(buf []byte, value interface{}) []byte {
	switch v := value.(type) {
	case int:
		return strconv.AppendInt(buf, int64(v), 10)
	case int32:
		return strconv.AppendInt(buf, int64(v), 10)
	case float64:
		return strconv.AppendFloat(buf, v, 'g', -1, 64)
	case string:
		return append(buf, v...)
	case []interface{}:
		for i, entry := range v {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendInfoValue(buf, entry)
		}
		return buf
	default:
		return append(buf, fmt.Sprint(v)...)
	}
}

func appendGenotypeValue(buf []byte, value interface{}) []byte {
	if value == nil {
		return append(buf, '.')
	}
	return appendInfoValue(buf, value)
}

// Format appends the tab-separated line for the variant to buf,
// without a trailing newline.
func (v *Variant) Format(buf []byte) []byte {
	buf = append(buf, v.Chrom...)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, int64(v.Pos), 10)
	buf = append(buf, '\t')
	if len(v.ID) == 0 {
		buf = append(buf, '.')
	} else {
		buf = append(buf, strings.Join(v.ID, ";")...)
	}
	buf = append(buf, '\t')
	buf = append(buf, v.Ref...)
	buf = append(buf, '\t')
	if len(v.Alt) == 0 {
		buf = append(buf, '.')
	} else {
		buf = append(buf, strings.Join(v.Alt, ",")...)
	}
	buf = append(buf, '\t')
	if v.Qual == nil {
		buf = append(buf, '.')
	} else {
		buf = strconv.AppendFloat(buf, v.Qual.(float64), 'f', 2, 64)
	}
	buf = append(buf, '\t')
	if len(v.Filter) == 0 {
		buf = append(buf, '.')
	} else {
		for i, filter := range v.Filter {
			if i > 0 {
				buf = append(buf, ';')
			}
			buf = append(buf, *filter...)
		}
	}
	buf = append(buf, '\t')
	if len(v.Info) == 0 {
		buf = append(buf, '.')
	} else {
		for i, entry := range v.Info {
			if i > 0 {
				buf = append(buf, ';')
			}
			buf = append(buf, *entry.Key...)
			if flag, ok := entry.Value.(bool); !ok || !flag {
				buf = append(buf, '=')
				buf = appendInfoValue(buf, entry.Value)
			}
		}
	}
	if len(v.GenotypeFormat) > 0 {
		buf = append(buf, '\t')
		for i, key := range v.GenotypeFormat {
			if i > 0 {
				buf = append(buf, ':')
			}
			buf = append(buf, *key...)
		}
		for _, gt := range v.GenotypeData {
			buf = append(buf, '\t')
			for i, key := range v.GenotypeFormat {
				if i > 0 {
					buf = append(buf, ':')
				}
				if key == GT {
					sep := byte('/')
					if gt.Phased {
						sep = '|'
					}
					for j, allele := range gt.GT {
						if j > 0 {
							buf = append(buf, sep)
						}
						if allele < 0 {
							buf = append(buf, '.')
						} else {
							buf = strconv.AppendInt(buf, int64(allele), 10)
						}
					}
					continue
				}
				value, _ := gt.Data.Get(key)
				buf = appendGenotypeValue(buf, value)
			}
		}
	}
	return buf
}
