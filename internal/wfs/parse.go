package wfs

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/dusk-indust/gridmerge/internal/geo"
)

// ParseNumberMatched extracts the total available feature count from the
// numberMatched attribute of the response root. An absent or non-numeric
// attribute is a malformed response.
func ParseNumberMatched(body []byte) (int, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, fmt.Errorf("%w: no feature collection root", ErrMalformedResponse)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Local != "numberMatched" {
				continue
			}
			n, err := strconv.Atoi(attr.Value)
			if err != nil {
				return 0, fmt.Errorf("%w: numberMatched %q is not numeric", ErrMalformedResponse, attr.Value)
			}
			if n < 0 {
				return 0, fmt.Errorf("%w: negative numberMatched %d", ErrMalformedResponse, n)
			}
			return n, nil
		}
		return 0, fmt.Errorf("%w: root element %q has no numberMatched attribute", ErrMalformedResponse, start.Name.Local)
	}
}

// ParseFeatures extracts feature records from a GetFeature response using
// the layer schema. Per-feature extraction failures are logged and skipped;
// they never fail the page. The returned skip count reflects features that
// were present but could not be parsed.
//
// Element matching is by local name only: WFS servers vary in namespace
// prefixes, and unknown elements are ignored rather than fatal.
func ParseFeatures(body []byte, schema Schema, crs string, logger *slog.Logger) ([]geo.FeatureRecord, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := schema.Validate(); err != nil {
		return nil, 0, err
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		records []geo.FeatureRecord
		skipped int
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			// io.EOF ends the document; anything else means the feature
			// container itself is unparsable.
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != schema.FeatureElement {
			continue
		}

		rec, err := parseFeatureElement(dec, start, schema, crs)
		if err != nil {
			skipped++
			logger.Warn("skipping unparsable feature", "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// parseFeatureElement consumes one feature element, including its closing
// tag, and extracts the record fields.
func parseFeatureElement(dec *xml.Decoder, start xml.StartElement, schema Schema, crs string) (geo.FeatureRecord, error) {
	rec := geo.FeatureRecord{CRS: crs}
	for _, attr := range start.Attr {
		if attr.Name.Local == "id" {
			rec.ID = attr.Value
		}
	}

	var (
		exterior    []geom.Coord
		interiors   [][]geom.Coord
		ringKind    string // "exterior" or "interior" while inside a ring
		sawClass    bool
		depth       = 1
		consumeErr  error
		consumeText = func(d *xml.Decoder) (string, error) {
			var sb strings.Builder
			for {
				tok, err := d.Token()
				if err != nil {
					return "", err
				}
				switch t := tok.(type) {
				case xml.CharData:
					sb.Write(t)
				case xml.EndElement:
					return sb.String(), nil
				case xml.StartElement:
					return "", fmt.Errorf("wfs: unexpected nested element %q", t.Name.Local)
				}
			}
		}
	)

	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return rec, fmt.Errorf("wfs: truncated feature element: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case schema.ClassField:
				text, err := consumeText(dec)
				depth--
				if err != nil {
					return rec, err
				}
				code, err := strconv.Atoi(strings.TrimSpace(text))
				if err != nil {
					return rec, fmt.Errorf("wfs: classification %q is not an integer", text)
				}
				rec.GridCode = code
				sawClass = true
			case schema.AuxField:
				text, err := consumeText(dec)
				depth--
				if err != nil {
					return rec, err
				}
				rec.AuxPct = strings.TrimSpace(text)
			case "exterior", "outerBoundaryIs":
				ringKind = "exterior"
			case "interior", "innerBoundaryIs":
				ringKind = "interior"
			case "posList", "coordinates":
				text, err := consumeText(dec)
				depth--
				if err != nil {
					return rec, err
				}
				ring, err := geo.ParsePosList(text)
				if err != nil {
					consumeErr = err
					continue
				}
				switch ringKind {
				case "interior":
					interiors = append(interiors, ring)
				default:
					// A posList outside any ring container is treated as
					// the exterior; only the first one counts.
					if exterior == nil {
						exterior = ring
					}
				}
			}
		case xml.EndElement:
			depth--
			if t.Name.Local == "exterior" || t.Name.Local == "interior" ||
				t.Name.Local == "outerBoundaryIs" || t.Name.Local == "innerBoundaryIs" {
				ringKind = ""
			}
		}
	}

	// Any malformed coordinate string fails the whole feature, even when
	// other rings parsed: emitting the polygon without the bad ring would
	// silently change its area.
	if consumeErr != nil {
		return rec, consumeErr
	}
	if exterior == nil {
		return rec, fmt.Errorf("wfs: feature %q has no geometry", rec.ID)
	}
	if !sawClass {
		return rec, fmt.Errorf("wfs: feature %q has no %s element", rec.ID, schema.ClassField)
	}

	p, err := geo.NewPolygon(exterior, interiors...)
	if err != nil {
		return rec, err
	}
	rec.Polygon = p
	return rec, nil
}

// parseCapabilities extracts feature type names from a GetCapabilities
// document.
func parseCapabilities(body []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		names         []string
		inFeatureType bool
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "FeatureType":
				inFeatureType = true
			case "Name":
				if !inFeatureType {
					continue
				}
				var name string
				if err := dec.DecodeElement(&name, &t); err != nil {
					return nil, fmt.Errorf("%w: feature type name: %v", ErrMalformedResponse, err)
				}
				names = append(names, strings.TrimSpace(name))
			}
		case xml.EndElement:
			if t.Name.Local == "FeatureType" {
				inFeatureType = false
			}
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no feature types in capabilities", ErrMalformedResponse)
	}
	return names, nil
}
