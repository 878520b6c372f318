package tagger

import "regexp"

// Keyword and pattern lists per category. Matching runs against the page's
// visible text, which is lowercased and whitespace-collapsed upstream, so
// every entry here is lowercase.

var marketplaceKeywords = []string{
	"market", "vendor", "listing", "escrow", "feedback", "buyer", "seller", "cart", "checkout", "order",
	"shipping", "product", "service", "purchase", "shop", "store", "deal", "review", "rating", "guarantee",
	"dispute", "wallet", "payment", "commission", "affiliate", "trusted seller", "buyer protection",
	"vendor profile", "trusted vendor", "marketplace", "order history", "my orders", "my cart", "add to cart",
	"shipping address", "track order", "order status", "pending order", "completed order", "refund", "buyer review",
	"seller rating", "product listing", "featured vendor", "escrow service", "escrow enabled", "vendor bond",
	"vendor application", "vendor fee", "vendor panel", "vendor dashboard", "vendor support", "buyer support",
	"purchase protection", "buyer feedback", "vendor feedback", "market rules", "market admin", "market support",
}

var marketplacePatterns = []*regexp.Regexp{
	regexp.MustCompile(`vendor(s)?\s+list`),
	regexp.MustCompile(`escrow\s+(service|enabled)`),
	regexp.MustCompile(`add\s+to\s+cart`),
	regexp.MustCompile(`leave\s+feedback`),
}

var forumKeywords = []string{
	"forum", "thread", "post", "reply", "topic", "board", "discussion", "subforum", "member", "register",
	"join", "community", "message", "quote", "bump", "sticky", "announcement", "moderator", "admin",
	"user profile", "signature", "private message", "inbox", "outbox", "post count", "view posts", "edit post",
	"forum rules", "forum admin", "forum moderator", "forum staff", "forum index", "forum search", "forum statistics",
	"forum activity", "forum login", "forum register", "forum user", "forum member", "forum post", "forum reply",
	"forum thread", "forum topic", "forum announcement", "forum sticky", "forum bump", "forum quote", "forum message",
}

var forumPatterns = []*regexp.Regexp{
	regexp.MustCompile(`new\s+thread`),
	regexp.MustCompile(`reply\s+to\s+post`),
	regexp.MustCompile(`view\s+topic`),
	regexp.MustCompile(`forum\s+index`),
}

var pasteKeywords = []string{
	"paste", "pastebin", "dump", "raw paste", "snippet", "share code", "upload text", "public paste",
	"private paste", "expiration", "syntax highlight", "clone", "fork", "raw", "bin", "hastebin", "ghostbin",
	"new paste", "public pastes", "my pastes", "recent pastes", "paste url", "paste title", "paste content",
	"paste description", "paste password", "paste expire", "paste size", "paste language", "paste author",
	"paste created", "paste updated", "paste view", "paste download", "paste report", "paste share",
	"paste delete", "paste edit", "paste raw", "paste embed", "paste search", "paste trending", "paste api",
	"pastebin api", "pastebin pro", "pastebin login", "pastebin signup", "pastebin user", "pastebin guest",
}

var pastePatterns = []*regexp.Regexp{
	regexp.MustCompile(`paste\s+id`),
	regexp.MustCompile(`raw\s+dump`),
	regexp.MustCompile(`view\s+paste`),
	regexp.MustCompile(`create\s+paste`),
}
