// Package envelope assembles normalized fields into the fixed outbound
// record. Every extraction path ends here.
package envelope

import (
	"time"

	"github.com/use-agent/postwatch/models"
	"github.com/use-agent/postwatch/normalize"
)

// Success builds a 200 envelope from raw fields, normalizing counts, the
// publish time and the media type. webName is used unless the fields carry
// their own display name.
func Success(webName string, f models.ExtractedFields, now time.Time) models.Envelope {
	d := empty(webName)
	if f.WebName != nil && *f.WebName != "" {
		d.WebName = f.WebName
	}

	d.Title = f.Title
	d.URL = f.URL
	d.Content = f.Content
	d.Author = f.Author
	d.MediaURLs = f.MediaURL
	d.MediaType = normalize.MediaType(f.MediaURL)
	d.PublishTime = normalize.PublishTimeString(f.PublishTime, now)
	d.PraiseCount = normalize.Count(f.Likes)
	d.ForwardCount = normalize.Count(f.Shares)
	d.ReplyCount = normalize.Count(f.Comments)
	d.VisitCount = normalize.Count(f.Views)
	d.AuthorFansCount = normalize.Count(f.Fans)

	return models.Envelope{Code: models.CodeSuccess, Message: models.MsgSuccess, Data: d}
}

// Terminal builds a non-success envelope: only url and web_name are set.
func Terminal(code int, message, webName, url string) models.Envelope {
	d := empty(webName)
	if url != "" {
		d.URL = &url
	}
	return models.Envelope{Code: code, Message: message, Data: d}
}

// Unsupported builds the 400 envelope for a URL shape the platform does not
// handle. No url is echoed back.
func Unsupported(webName string) models.Envelope {
	return models.Envelope{
		Code:    models.CodeUnsupportedURL,
		Message: models.MsgUnsupportedURL,
		Data:    empty(webName),
	}
}

// Failed builds the 502 envelope.
func Failed(webName, url string) models.Envelope {
	return Terminal(models.CodeFailed, models.MsgFailed, webName, url)
}

// Internal builds the 500 envelope used only at the transport boundary.
func Internal(webName, url string) models.Envelope {
	return Terminal(models.CodeInternal, models.MsgInternal, webName, url)
}

func empty(webName string) models.Data {
	var d models.Data
	if webName != "" {
		d.WebName = &webName
	}
	return d
}

// Invalid builds the 400 envelope for a request body that failed validation
// at the HTTP boundary.
func Invalid(webName string) models.Envelope {
	return models.Envelope{
		Code:    models.CodeUnsupportedURL,
		Message: models.MsgInvalidRequest,
		Data:    empty(webName),
	}
}
