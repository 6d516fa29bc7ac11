package catalog

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/IshaanNene/PharmCrawl/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var fixedClock = time.Date(2024, 3, 1, 12, 0, 0, 500000000, time.UTC)

func testSite() config.SiteConfig {
	site := config.DefaultConfig().Site
	site.Domain = "apteka-ot-sklada.ru"
	return site
}

func testExtractor() *Extractor {
	e := NewExtractor(testSite(), testLogger)
	e.now = func() time.Time { return fixedClock }
	return e
}

const productTemplate = `<!DOCTYPE html>
<html>
<body>
  <ul class="ui-breadcrumbs__list">
    <li><a href="/"><span itemprop="name">Главная</span></a></li>
    <li><a href="/catalog"><span itemprop="name">Каталог</span></a></li>
    <li><a href="/catalog/vitaminy"><span itemprop="name">Витамины  и
      минералы</span></a></li>
  </ul>
  <h1 class="text"><span>Компливит   таблетки 60 шт.</span></h1>
  <span class="ui-tag text text_weight_medium ui-tag_theme_secondary">Хит продаж</span>
  <span class="ui-tag text text_weight_medium ui-tag_theme_secondary">
      Акция</span>
  <span itemtype="legalName">Отисифарм</span>
  <span itemtype="location">Россия</span>
  <ul class="goods-gallery__preview-list">
    <li><img src="/images/goods/1.jpg"></li>
    <li><div><img src="/images/goods/2.jpg"></div></li>
    <li><img src="https://cdn.example.com/3.jpg"></li>
  </ul>
  <div class="goods-offer-panel">
    <div>{{STATUS}}</div>
    <div class="goods-offer-panel__price">{{PRICES}}</div>
  </div>
  <div itemprop="description">
    <p>Витаминно-минеральный&nbsp;комплекс.</p>
    <div><h3>Состав</h3><ul><li>Витамин A</li><li>Витамин&shy;C</li></ul></div>
  </div>
</body>
</html>`

func productHTML(status string, prices ...string) string {
	var spans strings.Builder
	for _, p := range prices {
		spans.WriteString("<span>" + p + "</span>")
	}
	html := strings.Replace(productTemplate, "{{STATUS}}", status, 1)
	return strings.Replace(html, "{{PRICES}}", spans.String(), 1)
}

func listingHTML(hrefs []string, next string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="goods-grid__inner">`)
	for _, h := range hrefs {
		b.WriteString(`<div class="goods-grid__cell"><div class="goods-card"><a class="goods-card__link" href="` + h + `">card</a></div></div>`)
	}
	b.WriteString(`</div><ul class="ui-pagination">`)
	b.WriteString(`<li class="ui-pagination__item ui-pagination__item_current"><a href="#">1</a></li>`)
	if next != "" {
		b.WriteString(`<li class="ui-pagination__item ui-pagination__item_next"><a href="` + next + `">next</a></li>`)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}
