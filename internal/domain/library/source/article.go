package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"storyreel/internal/domain/story"

	"github.com/PuerkitoBio/goquery"
)

type rendered struct {
	Rendered string `json:"rendered"`
}

type apiArticle struct {
	ID      int      `json:"id"`
	Title   rendered `json:"title"`
	Content rendered `json:"content"`
}

// LoadArticle fetches the full post behind a story and flattens it to text.
func (c *Client) LoadArticle(ctx context.Context, id int) (*story.Article, error) {
	u := c.wpBase.ResolveReference(&url.URL{Path: "cm_story/" + strconv.Itoa(id)})

	op := fmt.Sprintf("load article %d", id)
	body, _, err := c.get(ctx, u.String())
	if err != nil {
		return nil, &story.NetworkError{Op: op, Err: err}
	}

	var raw apiArticle
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &story.NetworkError{
			Op:  op,
			Err: fmt.Errorf("%w: failed to parse JSON response: %v", story.ErrMalformed, err),
		}
	}

	text, err := htmlToText(raw.Content.Rendered)
	if err != nil {
		return nil, &story.NetworkError{Op: op, Err: fmt.Errorf("%w: %v", story.ErrMalformed, err)}
	}
	title, _ := htmlToText(raw.Title.Rendered)

	return &story.Article{
		ID:    id,
		Title: title,
		HTML:  raw.Content.Rendered,
		Text:  text,
	}, nil
}

// htmlToText keeps one paragraph per block element
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var blocks []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, blockquote").Each(func(i int, s *goquery.Selection) {
		// Nested blocks are picked up through their parent
		if s.ParentsFiltered("p, li, blockquote").Length() > 0 {
			return
		}
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			return
		}
		if goquery.NodeName(s) == "li" {
			text = "• " + text
		}
		blocks = append(blocks, text)
	})

	if len(blocks) == 0 {
		return strings.Join(strings.Fields(doc.Text()), " "), nil
	}
	return strings.Join(blocks, "\n\n"), nil
}
