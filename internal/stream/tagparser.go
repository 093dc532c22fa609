package stream

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// The interview model interleaves plain narration with lightweight
// <name>value markup. A '<' always closes whatever was being buffered and
// opens a tag-name buffer; a '>' seals the tag name and opens that tag's
// value buffer; everything else belongs to whichever buffer is open.

type parseState int

const (
	stateText parseState = iota // plain narration, emitted as it arrives
	stateTagName
	stateValue
)

// WaitTag is the sentinel the model emits when it judged the user's
// utterance incomplete. Recognizing it halts the whole turn.
const WaitTag = "wait"

// Fields holds the structured metadata committed from one model turn.
type Fields struct {
	Thought      string
	Topic        string
	Voice        string
	Instructions string
	Title        string
	Progress     *int
	IsFollowUp   bool
}

// TagParser is a single-pass character state machine over an incremental
// completion stream. Narration characters are handed to emit immediately;
// tagged values are committed on the '<' that closes them.
type TagParser struct {
	state   parseState
	tag     string
	buf     strings.Builder
	fields  Fields
	waiting bool
	emit    func(text string)
	log     *zerolog.Logger
}

func NewTagParser(emit func(text string), logger *zerolog.Logger) *TagParser {
	if emit == nil {
		emit = func(string) {}
	}
	return &TagParser{state: stateText, emit: emit, log: logger}
}

// Feed consumes the next chunk of streamed text. After the wait sentinel is
// recognized all further input is discarded.
func (p *TagParser) Feed(chunk string) {
	if p.waiting {
		return
	}
	var text strings.Builder
	for _, c := range chunk {
		switch c {
		case '<':
			switch p.state {
			case stateValue:
				p.commit(p.tag, p.buf.String())
			case stateText:
				if text.Len() > 0 {
					p.emit(text.String())
					text.Reset()
				}
			}
			p.tag = ""
			p.buf.Reset()
			p.state = stateTagName
		case '>':
			if p.state == stateTagName {
				p.tag = p.buf.String()
				p.buf.Reset()
				if p.tag == WaitTag {
					// The turn is void: nothing already committed may
					// survive either.
					p.fields = Fields{}
					p.waiting = true
					return
				}
				p.state = stateValue
				continue
			}
			// '>' outside a tag name is ordinary content.
			if p.state == stateText {
				text.WriteRune(c)
			} else {
				p.buf.WriteRune(c)
			}
		default:
			if p.state == stateText {
				text.WriteRune(c)
			} else {
				p.buf.WriteRune(c)
			}
		}
	}
	if text.Len() > 0 {
		p.emit(text.String())
	}
}

// Waiting reports whether the wait sentinel was seen.
func (p *TagParser) Waiting() bool { return p.waiting }

// Finish flushes any value still buffered at natural stream end and returns
// the committed fields. After wait, Finish returns empty fields.
func (p *TagParser) Finish() Fields {
	if p.waiting {
		return Fields{}
	}
	if p.state == stateValue && p.buf.Len() > 0 {
		p.commit(p.tag, p.buf.String())
		p.buf.Reset()
	}
	return p.fields
}

func (p *TagParser) commit(tag, value string) {
	switch tag {
	case "thought":
		// Model reasoning only; never shown to the user.
		p.fields.Thought = value
	case "topic":
		p.fields.Topic = value
	case "voice":
		p.fields.Voice = value
	case "instructions":
		p.fields.Instructions = value
	case "title":
		p.fields.Title = value
	case "progress":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 || n > 100 {
			if p.log != nil {
				p.log.Warn().Str("value", value).Msg("ignoring invalid progress field")
			}
			return
		}
		p.fields.Progress = &n
	case "isFollowUp":
		p.fields.IsFollowUp = strings.TrimSpace(value) == "true"
	default:
		if p.log != nil {
			p.log.Debug().Str("tag", tag).Msg("ignoring unrecognized field")
		}
	}
}
