package browser

import (
	"fmt"

	"github.com/agentweb/agentweb/pkg/types"
)

// extractionJS returns the in-page script that reads the live DOM into the
// page-record shape. Field names mirror the PageRecord JSON tags so the
// result unmarshals directly. Unlike the static parser, links keep their DOM
// order without deduplication and metas keep original-case keys.
func extractionJS() string {
	return fmt.Sprintf(extractionTemplate,
		types.MaxHeadingTextLength,
		types.MaxBrowserLinks,
		types.MaxLinkTextLength,
		types.MaxSelectOptions,
		types.MaxImages,
		types.MaxTables,
		types.MaxBrowserTextLength,
	)
}

const extractionTemplate = `(() => {
	const trunc = (s, n) => s.length > n ? s.slice(0, n) : s;
	const clean = (s) => (s || "").replace(/\s+/g, " ").trim();

	const meta = {};
	for (const m of document.querySelectorAll("meta")) {
		const content = m.getAttribute("content");
		if (content === null) continue;
		const name = m.getAttribute("name");
		const prop = m.getAttribute("property");
		if (name) meta[name] = content;
		else if (prop) meta[prop] = content;
	}

	const headings = [];
	for (const h of document.querySelectorAll("h1,h2,h3,h4,h5,h6")) {
		const text = clean(h.innerText);
		if (!text) continue;
		headings.push({level: parseInt(h.tagName[1], 10), text: trunc(text, %d)});
	}

	const links = [];
	for (const a of document.querySelectorAll("a[href]")) {
		if (links.length >= %d) break;
		const href = a.href;
		if (!href || !/^https?:/.test(href)) continue;
		const text = clean(a.innerText);
		if (!text) continue;
		links.push({text: trunc(text, %d), href: href});
	}

	const forms = [];
	for (const f of document.querySelectorAll("form")) {
		const fields = [];
		for (const el of f.querySelectorAll("input")) {
			const type = el.getAttribute("type") || "text";
			if (type.toLowerCase() === "hidden") continue;
			fields.push({
				kind: "input",
				type: type,
				name: el.getAttribute("name") || "",
				placeholder: el.getAttribute("placeholder") || "",
				required: el.required,
			});
		}
		for (const el of f.querySelectorAll("textarea")) {
			fields.push({
				kind: "textarea",
				name: el.getAttribute("name") || "",
				placeholder: el.getAttribute("placeholder") || "",
				required: el.required,
			});
		}
		for (const el of f.querySelectorAll("select")) {
			const options = [];
			for (const o of el.options) {
				if (options.length >= %d) break;
				const t = clean(o.textContent);
				if (t) options.push(t);
			}
			fields.push({kind: "select", name: el.getAttribute("name") || "", options: options});
		}
		forms.push({
			action: f.getAttribute("action") || "",
			method: (f.getAttribute("method") || "GET").toUpperCase(),
			fields: fields,
		});
	}

	const images = [];
	for (const img of document.querySelectorAll("img[src]")) {
		if (images.length >= %d) break;
		if (!img.src) continue;
		images.push({
			src: img.src,
			alt: img.getAttribute("alt") || "",
			width: img.getAttribute("width") || "",
			height: img.getAttribute("height") || "",
		});
	}

	const tables = [];
	for (const table of document.querySelectorAll("table")) {
		if (tables.length >= %d) break;
		const rows = [];
		for (const tr of table.querySelectorAll("tr")) {
			const cells = [];
			for (const cell of tr.querySelectorAll("td,th")) cells.push(clean(cell.innerText));
			if (cells.length) rows.push(cells);
		}
		if (rows.length) tables.push(rows);
	}

	const region = document.querySelector("main")
		|| document.querySelector("article")
		|| document.querySelector('div[class*="content"],div[id*="content"],div[class*="main"],div[id*="main"],div[class*="article"],div[id*="article"]')
		|| document.body;
	const textContent = trunc(region ? region.innerText : "", %d);

	let httpStatus = 0;
	try {
		const nav = performance.getEntriesByType("navigation")[0];
		if (nav && nav.responseStatus) httpStatus = nav.responseStatus;
	} catch (e) {}

	return {
		url: location.href,
		title: document.title || "",
		meta: meta,
		headings: headings,
		links: links,
		forms: forms,
		images: images,
		tables: tables,
		textContent: textContent,
		httpStatus: httpStatus,
		contentType: document.contentType || "",
	};
})()`
