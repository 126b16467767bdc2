// Package feed writes one RSS 2.0 document with Media RSS extensions per year.
//
// The byte layout matches the feeds consumers already subscribe to, so every
// fixed string lives in Literals rather than in the formatting code.
package feed

// Literals are the fixed strings of the feed layout.
type Literals struct {
	Language           string `yaml:"language"`
	PubDate            string `yaml:"pub_date"`
	DescriptionPrefix  string `yaml:"description_prefix"`
	ImageTitleSuffix   string `yaml:"image_title_suffix"`
	ImageURL           string `yaml:"image_url"`
	Keywords           string `yaml:"keywords"`
	FallbackThumbnail  string `yaml:"fallback_thumbnail"`
	MissingDescription string `yaml:"missing_description"`
}

// DefaultLiterals returns the strings used by the published feeds.
func DefaultLiterals() Literals {
	return Literals{
		Language:           "en-us",
		PubDate:            "Wed, 11 Nov 2015 20:30:54 GMT",
		DescriptionPrefix:  "Kennedy Family Videos from the Year ",
		ImageTitleSuffix:   "-Kennedy-Family-Video-Feed",
		ImageURL:           "http://s2.content.video.llnw.net/lovs/images-prod/59021fabe3b645968e382ac726cd6c7b/channel/1cfd09ab38e54f48be8498e0249f5c83/S9O.600x600.png",
		Keywords:           "episode 39, roku recommends, showtime, the affair",
		FallbackThumbnail:  "http://s2.content.video.llnw.net/lovs/images-prod/59021fabe3b645968e382ac726cd6c7b/media/e92ddcb71f154e6897f5900471c54992/aUf.540x304.jpeg",
		MissingDescription: "null",
	}
}

// Merge returns l with every empty field taken from d.
func (l Literals) Merge(d Literals) Literals {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	return Literals{
		Language:           pick(l.Language, d.Language),
		PubDate:            pick(l.PubDate, d.PubDate),
		DescriptionPrefix:  pick(l.DescriptionPrefix, d.DescriptionPrefix),
		ImageTitleSuffix:   pick(l.ImageTitleSuffix, d.ImageTitleSuffix),
		ImageURL:           pick(l.ImageURL, d.ImageURL),
		Keywords:           pick(l.Keywords, d.Keywords),
		FallbackThumbnail:  pick(l.FallbackThumbnail, d.FallbackThumbnail),
		MissingDescription: pick(l.MissingDescription, d.MissingDescription),
	}
}
