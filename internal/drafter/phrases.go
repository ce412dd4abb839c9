package drafter

// line is a bank entry. When hi > 0 every {n} in text is replaced by a
// number drawn from [lo, hi].
type line struct {
	text   string
	lo, hi int
}

type service struct {
	name    string
	benefit string
}

var services = []service{
	{"ceramic coating", "keeps paint glossy and easy to clean"},
	{"interior detailing", "leaves seats, mats and vents fresh"},
	{"paint correction", "takes out swirls and light scratches"},
	{"hand wash and wax", "brings back a deep, clean shine"},
	{"headlight restoration", "clears cloudy lenses for safer night driving"},
	{"odor removal", "clears out smoke, pet and food smells"},
	{"engine bay cleaning", "lifts grease and makes leaks easy to spot"},
	{"wheel and tire care", "strips brake dust and keeps rubber dark"},
}

var styles = []string{"friendly", "expert", "urgent", "luxury", "playful"}

var openers = map[string][]string{
	"friendly": {
		"Let's make your car feel new again.",
		"Your car works hard for you every day.",
		"A clean car just feels better to drive.",
		"We love a car that makes its owner smile.",
	},
	"expert": {
		"Paint needs steady care to stay sound.",
		"Good care starts with the right steps.",
		"Small habits protect the value of your car.",
		"Most wear starts long before you can see it.",
	},
	"urgent": {
		"Don't wait for the damage to spread.",
		"Every week of grime costs your paint.",
		"Now is the best time to book your spot.",
		"Sun and salt do not take a day off.",
	},
	"luxury": {
		"Your car deserves a flawless finish.",
		"Fine cars call for fine care.",
		"Treat your car to a true showroom shine.",
		"Every panel should look like the day you bought it.",
	},
	"playful": {
		"Dirt had a good run, and now its time is up.",
		"Your car called, and it wants a spa day.",
		"Bugs and grime are not a style.",
		"Let's give your ride something to brag about.",
	},
}

var simpleSentences = []line{
	{text: "{brand} brings {service} right to your door."},
	{text: "We use gentle products that are safe for your paint."},
	{text: "Each visit ends with a full walk-around check."},
	{text: "You get a clear price before we start."},
	{text: "Our team takes the time to do it right."},
	{text: "Our {service} {benefit}."},
	{text: "Most jobs are done in less than a day."},
	{text: "We clean the spots most people miss."},
	{text: "You can book a time that fits your week."},
	{text: "We bring our own water and power."},
	{text: "Our crew has served this area for {n} years.", lo: 3, hi: 15},
	{text: "A visit takes about {n} hours from start to finish.", lo: 2, hi: 6},
}

var keyPoints = []line{
	{text: "{Service} done in about {n} hours", lo: 2, hi: 6},
	{text: "Protection that lasts up to {n} months", lo: 6, hi: 36},
	{text: "We treat over {n} cars each month", lo: 40, hi: 200},
	{text: "Water beads and rolls off up to {n} times faster", lo: 2, hi: 5},
	{text: "Interior cleaned in {n} simple stages", lo: 3, hi: 6},
	{text: "Free pickup within {n} miles", lo: 5, hi: 25},
	{text: "Book online in under {n} minutes", lo: 2, hi: 5},
	{text: "Safe on paint, glass, trim and wheels"},
	{text: "Clear prices with no hidden fees"},
	{text: "Fully insured and trained crew"},
	{text: "Eco-friendly soaps and low water use"},
	{text: "Photos of your car before and after"},
}

var articleHeadings = []string{
	"Why {service} matters",
	"What to expect from {service}",
	"How often to book",
	"Common mistakes to avoid",
	"Protecting your investment",
	"Caring for your car between visits",
}

var articleSentences = []line{
	{text: "Regular {service} protects the finish from sun, salt and road grime over time."},
	{text: "Many owners wait until damage is visible, but prevention costs far less than repair."},
	{text: "A steady schedule keeps the paint smooth and makes every wash easier."},
	{text: "Professional tools reach areas that a quick home wash usually misses."},
	{text: "The right products also protect trim, glass and wheels from early wear."},
	{text: "Buyers notice a well-kept finish within the first few seconds of a viewing."},
	{text: "Choosing a trusted team means fewer surprises and better results in the long run."},
	{text: "Most drivers should plan a deep clean every {n} months, and more often in winter.", lo: 3, hi: 6},
	{text: "Our {service} {benefit}, which keeps your car looking cared for."},
	{text: "A short visit every season keeps small problems from turning into costly ones."},
}

var whitepaperHeadings = []string{
	"Executive summary",
	"Surface degradation mechanisms",
	"Operational methodology",
	"Lifecycle cost considerations",
	"Provider evaluation criteria",
	"Implementation recommendations",
}

var whitepaperSentences = []line{
	{text: "Independent evaluations of automotive surface protection consistently demonstrate that professionally applied {service} substantially reduces oxidation, environmental contamination and ultraviolet degradation across extended ownership periods."},
	{text: "Fleet operators who institutionalize preventive detailing programs typically report measurably lower reconditioning expenditures and improved residual valuations at disposition."},
	{text: "The underlying chemistry involves cross-linked polymer or silica-based layers that establish a sacrificial barrier between the clear coat and aggressive environmental contaminants."},
	{text: "Operational methodology emphasizes decontamination, meticulous surface preparation and controlled application conditions, because inconsistent preparation fundamentally undermines long-term durability."},
	{text: "Organizations evaluating detailing providers should prioritize documented procedures, verifiable training credentials and transparent maintenance recommendations."},
	{text: "Comparative observations across approximately {n} vehicles indicate that scheduled maintenance intervals correlate with significantly fewer paint-related reconditioning interventions.", lo: 120, hi: 900},
	{text: "Quantifying the economic contribution of preventive maintenance requires considering depreciation, downtime, labor allocation and the administrative overhead of unplanned remediation."},
	{text: "Procurement specialists increasingly recognize professional {service} as a preventive maintenance category rather than a discretionary cosmetic expenditure."},
}

var whitepaperPoints = []line{
	{text: "Typical reapplication interval: {n} months under ordinary operating conditions", lo: 12, hi: 36},
	{text: "Average preparation duration: {n} labor hours per passenger vehicle", lo: 2, hi: 8},
	{text: "Recommended inspection frequency: every {n} weeks for high-utilization fleets", lo: 4, hi: 12},
	{text: "Documented quality verification at {n} inspection checkpoints", lo: 3, hi: 7},
	{text: "Environmental exposure assessment precedes every application"},
	{text: "Written maintenance guidance accompanies every completed engagement"},
}

var procedureSteps = []line{
	{text: "Rinse the vehicle from top to bottom to remove loose dirt and grit."},
	{text: "Apply a pH-neutral foam and let it dwell for {n} minutes.", lo: 3, hi: 8},
	{text: "Wash one panel at a time using the two-bucket method."},
	{text: "Decontaminate the paint with a clay bar and plenty of lubricant."},
	{text: "Dry every surface with clean, folded microfiber towels."},
	{text: "Inspect the finish under bright light before applying protection."},
	{text: "Apply the {service} product evenly in small overlapping sections."},
	{text: "Let the product set for {n} hours away from rain and sprinklers.", lo: 12, hi: 24},
}

var procedureSentences = []line{
	{text: "This procedure describes how our technicians carry out {service} on a standard passenger vehicle."},
	{text: "Follow each step in order and confirm the result before moving to the next one."},
	{text: "Work in the shade, because a hot panel dries product before it can bond properly."},
	{text: "Replace any towel that touches the ground, since trapped grit will scratch the clear coat."},
	{text: "Record the products and batch numbers used on the job sheet for every vehicle."},
}

var aftercarePoints = []line{
	{text: "Avoid automatic car washes for {n} days", lo: 7, hi: 14},
	{text: "Use a pH-neutral shampoo for routine washes"},
	{text: "Book a maintenance check after {n} months", lo: 3, hi: 6},
	{text: "Remove bird droppings and sap within {n} hours", lo: 24, hi: 48},
}

var headlines = []line{
	{text: "{Service} that actually lasts"},
	{text: "Showroom shine in {n} hours", lo: 2, hi: 6},
	{text: "Your car, but better"},
	{text: "We come to you with {service}"},
	{text: "Protect your paint for {n} months", lo: 6, hi: 36},
	{text: "Trusted by {n} local drivers", lo: 200, hi: 2000},
	{text: "Clean inside and out"},
	{text: "Detailing that fits your week"},
}

var titles = map[string][]string{
	"article": {
		"A simple guide to {service}",
		"What every driver should know about {service}",
		"Keeping your car sharp with {service}",
	},
	"flyer": {
		"Professional {service} near you",
		"Give your car the {service} it deserves",
		"{Service} made easy",
	},
	"ad_headlines": {
		"{Service} ad set",
		"Search ads for {service}",
	},
	"email": {
		"Your car is due for some care",
		"A fresh look for your car this month",
		"Time for {service}?",
	},
	"whitepaper": {
		"Professional {service} as preventive asset maintenance",
		"The operational economics of {service}",
	},
	"procedure": {
		"Standard procedure for {service}",
		"How we perform {service}",
	},
	"testimonial_card": {
		"What drivers say about {brand}",
		"Real results from real customers",
	},
}

var fallbackQuotes = []string{
	"They made my old truck look brand new.",
	"The crew was on time, friendly and careful with my car.",
	"I can't believe how clean the inside looks now.",
	"Best money I have spent on my car in years.",
}

// hype lines are the over-claims drafts occasionally contain. The scorer's
// hard constraints must catch every one of them.
var hype = []string{
	"Guaranteed results on every car.",
	"Act now before this deal is gone!",
	"Make $500 per week by referring your friends.",
}
