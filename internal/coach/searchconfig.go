package coach

// Domain and keyword heuristics used to classify and score search
// results.

var bookDomains = []string{"amazon.com", "goodreads.com", "oreilly.com", "manning.com"}

var paidTitleIndicators = []string{"buy", "purchase", "paid", "premium", "subscription", "kindle", "paperback"}

var courseDomains = []string{"coursera.org", "udemy.com", "edx.org", "pluralsight.com", "linkedin.com/learning", "udacity.com", "skillshare.com"}

var videoDomains = []string{"youtube.com", "vimeo.com", "youtu.be"}

var documentationDomains = []string{"docs.", ".io/docs", "developer.", "reference"}

var communityDomains = []string{"stackoverflow.com", "reddit.com", "forum.", "community."}

var courseIndicators = []string{"course", "class", "learn", "training", "bootcamp", "academy"}

var videoIndicators = []string{"video", "watch", "tutorial"}

var documentationIndicators = []string{"documentation", "docs", "reference", "manual", "guide"}

var communityIndicators = []string{"forum", "community", "discussion", "stack overflow", "reddit"}

var topQualityDomains = map[string]bool{
	"github.com": true, "stackoverflow.com": true, "mdn.mozilla.org": true, "freecodecamp.org": true,
	"coursera.org": true, "udemy.com": true, "pluralsight.com": true, "edx.org": true,
	"medium.com": true, "dev.to": true, "docs.microsoft.com": true, "developer.mozilla.org": true,
	"w3schools.com": true, "geeksforgeeks.org": true, "youtube.com": true, "linkedin.com/learning": true,
	"udacity.com": true, "tutorialspoint.com": true, "khanacademy.org": true, "harvard.edu": true,
	"mit.edu": true, "stanford.edu": true, "educative.io": true, "reddit.com": true, "hackernoon.com": true,
}

var mediumQualityDomains = map[string]bool{
	"guru99.com": true, "javatpoint.com": true, "educba.com": true, "simplilearn.com": true,
	"bitdegree.org": true, "digitalocean.com": true, "towardsdatascience.com": true,
	"css-tricks.com": true, "hackr.io": true, "baeldung.com": true, "tutorialrepublic.com": true,
	"programiz.com": true, "learnpython.org": true,
}
