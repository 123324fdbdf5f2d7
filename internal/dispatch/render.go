package dispatch

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/nimasrn/campaign-dispatcher/internal/gateways"
	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/nimasrn/campaign-dispatcher/pkg/logger"
)

const (
	nameToken        = "{{1}}"
	maxSubstitutions = 3
	publicDir        = "public/"
)

// SubstituteName puts name into the first three {{1}} slots of text. Other
// placeholders are left as they are.
func SubstituteName(text, name string) string {
	return strings.Replace(text, nameToken, name, maxSubstitutions)
}

// SubstituteComponents fills text parameters that are exactly {{1}}, {{2}} or
// {{3}} with name, at most three parameters over the whole payload.
func SubstituteComponents(components []gateway.Component, name string) {
	replaced := 0
	for i := range components {
		params := components[i].Parameters
		for j := range params {
			if replaced == maxSubstitutions {
				return
			}
			if params[j].Type != "text" {
				continue
			}
			switch params[j].Text {
			case "{{1}}", "{{2}}", "{{3}}":
				params[j].Text = name
				replaced++
			}
		}
	}
}

// MediaKindOf picks the provider media kind of a template file.
func MediaKindOf(file string) model.MediaKind {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".mp4", ".avi":
		return model.MediaKindVideo
	default:
		return model.MediaKindImage
	}
}

// useUploadedMedia points header media parameters at an uploaded media id.
func useUploadedMedia(components []gateway.Component, kind model.MediaKind, mediaID string) {
	for i := range components {
		if components[i].Type != "header" {
			continue
		}
		for j := range components[i].Parameters {
			p := &components[i].Parameters[j]
			var ref **gateway.MediaRef
			switch {
			case kind == model.MediaKindImage && p.Type == "image":
				ref = &p.Image
			case kind == model.MediaKindVideo && p.Type == "video":
				ref = &p.Video
			default:
				continue
			}
			if *ref == nil {
				*ref = &gateway.MediaRef{}
			}
			(*ref).ID = mediaID
			(*ref).Link = ""
		}
	}
}

type rendered struct {
	message gateway.TemplateMessage
	local   *model.Message
}

// mediaCache keeps media ids uploaded during one drain.
type mediaCache map[string]string

func (s *Scheduler) render(ctx context.Context, rec *model.PendingRecipient, media mediaCache) (*rendered, error) {
	tpl := rec.Template

	components, err := gateway.ParseComponents(tpl.Components)
	if err != nil {
		return nil, err
	}
	SubstituteComponents(components, rec.Name)

	local := &model.Message{
		Number:    rec.Phone,
		Body:      SubstituteName(tpl.Message, rec.Name),
		MediaType: model.MediaKindText,
		FromMe:    true,
		Ack:       model.MessageAckNone,
		PersonID:  rec.PersonID,
		UserID:    rec.CampaignUserID,
	}

	if tpl.HasMedia() {
		kind := MediaKindOf(tpl.File)
		local.MediaType = kind
		local.MediaURL = tpl.File

		if idx := strings.Index(tpl.File, publicDir); idx >= 0 {
			mediaID, ok := media[tpl.File]
			if !ok {
				path := filepath.Join(s.opts.MediaRoot, filepath.FromSlash(tpl.File[idx:]))
				mediaID, err = s.gateway.UploadMedia(ctx, path, kind)
				if err != nil {
					logger.Warn("Media upload failed, sending template link", "file", tpl.File, "error", err)
				} else {
					media[tpl.File] = mediaID
				}
			}
			if mediaID != "" {
				local.MediaID = mediaID
				useUploadedMedia(components, kind, mediaID)
			}
		}
	}

	return &rendered{
		message: gateway.TemplateMessage{
			To:         rec.Phone,
			Name:       tpl.ProviderName,
			Language:   tpl.Language,
			Components: components,
		},
		local: local,
	}, nil
}
