// SPDX-License-Identifier: Apache-2.0

package decoders

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
)

// MAPI property tags stored as "__substg1.0_<tag><type>" streams.
const (
	propSubject          = "0037"
	propSenderName       = "0C1A"
	propSenderEmail      = "0065"
	propDisplayTo        = "0E04"
	propDisplayCC        = "0E03"
	propBody             = "1000"
	propTransportHeaders = "007D"
	propAttachLongName   = "3707"
	propAttachShortName  = "3704"

	substgPrefix  = "__substg1.0_"
	attachStorage = "__attach_version1.0_"
	recipStorage  = "__recip_version1.0_"
	nameIDStorage = "__nameid_version1.0"
)

// OutlookDecoder reads Outlook .msg files, which are compound file binary
// containers with one stream per MAPI property.
type OutlookDecoder struct{}

// NewOutlookDecoder creates a new OutlookDecoder.
func NewOutlookDecoder() *OutlookDecoder {
	return &OutlookDecoder{}
}

func (d *OutlookDecoder) Name() string {
	return "outlook"
}

func (d *OutlookDecoder) Formats() []evidence.Format {
	return []evidence.Format{evidence.FormatOutlook}
}

func (d *OutlookDecoder) Decode(_ context.Context, source evidence.EvidenceSource) (evidence.DecodedText, error) {
	f, err := os.Open(source.Path)
	if err != nil {
		return evidence.DecodedText{}, fmt.Errorf("failed to open message: %w", err)
	}
	defer f.Close()

	doc, err := mscfb.New(f)
	if err != nil {
		return evidence.DecodedText{}, fmt.Errorf("failed to read compound file: %w", err)
	}

	props := make(map[string]string)
	attachments := make(map[string]map[string]string)
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		tag, ok := propertyTag(entry.Name)
		if !ok {
			continue
		}
		storage, skip := owningStorage(entry.Path)
		if skip {
			continue
		}
		raw, err := io.ReadAll(entry)
		if err != nil {
			return evidence.DecodedText{}, fmt.Errorf("failed to read %s: %w", entry.Name, err)
		}
		value := decodeProperty(entry.Name, raw)

		if storage == "" {
			props[tag] = value
			continue
		}
		if attachments[storage] == nil {
			attachments[storage] = make(map[string]string)
		}
		attachments[storage][tag] = value
	}

	from := props[propSenderName]
	if email := props[propSenderEmail]; email != "" && email != from {
		from = strings.TrimSpace(fmt.Sprintf("%s <%s>", from, email))
	}
	m := message{
		From:    from,
		To:      props[propDisplayTo],
		CC:      props[propDisplayCC],
		Date:    headerValue(props[propTransportHeaders], "Date"),
		Subject: props[propSubject],
		Body:    props[propBody],
	}

	storages := make([]string, 0, len(attachments))
	for s := range attachments {
		storages = append(storages, s)
	}
	sort.Strings(storages)
	for _, s := range storages {
		name := attachments[s][propAttachLongName]
		if name == "" {
			name = attachments[s][propAttachShortName]
		}
		if name == "" {
			name = s
		}
		m.Attachments = append(m.Attachments, name)
	}

	text, cut := m.render()
	if cut {
		return evidence.Partial(text, "email body truncated"), nil
	}
	return evidence.OK(text), nil
}

// propertyTag returns the four hex digit property id of a string-valued
// property stream.
func propertyTag(name string) (string, bool) {
	if !strings.HasPrefix(name, substgPrefix) || len(name) != len(substgPrefix)+8 {
		return "", false
	}
	id := strings.ToUpper(name[len(substgPrefix):])
	if kind := id[4:]; kind != "001F" && kind != "001E" {
		return "", false
	}
	return id[:4], true
}

// owningStorage returns the attachment storage holding an entry. Recipient
// and named-property storages are skipped.
func owningStorage(path []string) (string, bool) {
	for _, p := range path {
		switch {
		case strings.HasPrefix(p, recipStorage), strings.HasPrefix(p, nameIDStorage):
			return "", true
		case strings.HasPrefix(p, attachStorage):
			return p, false
		}
	}
	return "", false
}

// decodeProperty decodes PT_UNICODE (UTF-16LE) and PT_STRING8 (ANSI) values.
func decodeProperty(name string, raw []byte) string {
	var (
		out []byte
		err error
	)
	if strings.HasSuffix(strings.ToUpper(name), "001F") {
		out, err = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	} else {
		out, err = charmap.Windows1252.NewDecoder().Bytes(raw)
	}
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(out), "\x00")
}

// headerValue finds one field in a block of RFC 5322 transport headers.
func headerValue(headers, key string) string {
	sc := bufio.NewScanner(strings.NewReader(headers))
	prefix := strings.ToLower(key) + ":"
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}
