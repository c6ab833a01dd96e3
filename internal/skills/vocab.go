package skills

// technicalSkills is matched against lowercased résumé text in this order,
// so the output order is stable and languages come first.
var technicalSkills = []string{
	// languages
	"python", "java", "javascript", "typescript", "c++", "c#", "php", "ruby", "go", "rust",
	"swift", "kotlin", "scala", "r", "matlab", "perl", "shell", "bash", "powershell",

	// frontend
	"react", "angular", "vue", "vue.js", "svelte", "ember", "backbone", "jquery",
	"html", "html5", "css", "css3", "sass", "scss", "less", "bootstrap", "tailwind",
	"material-ui", "chakra-ui", "webpack", "vite", "parcel",

	// backend
	"node.js", "express", "express.js", "django", "flask", "fastapi", "spring", "spring boot",
	"hibernate", "laravel", "symfony", "rails", "ruby on rails", "asp.net", ".net core",

	// databases
	"sql", "mysql", "postgresql", "sqlite", "mongodb", "redis", "elasticsearch",
	"cassandra", "dynamodb", "neo4j", "oracle", "sql server", "mariadb",

	// cloud
	"aws", "amazon web services", "azure", "microsoft azure", "gcp", "google cloud",
	"google cloud platform", "heroku", "digitalocean", "linode", "vultr",

	// devops
	"docker", "kubernetes", "jenkins", "gitlab ci", "github actions", "circleci",
	"travis ci", "ansible", "terraform", "vagrant", "git", "svn", "mercurial",

	// ml and data
	"machine learning", "deep learning", "artificial intelligence", "ai", "ml",
	"tensorflow", "pytorch", "keras", "scikit-learn", "pandas", "numpy", "matplotlib",
	"seaborn", "plotly", "jupyter", "anaconda", "spark", "hadoop", "kafka",

	// mobile
	"ios", "android", "react native", "flutter", "xamarin", "ionic", "cordova",

	// other
	"rest api", "restful", "graphql", "grpc", "microservices", "serverless",
	"blockchain", "ethereum", "solidity", "web3", "api", "json", "xml", "yaml",
	"oauth", "jwt", "ssl", "tls", "https", "websockets", "tcp/ip", "http",
}

var softSkills = []string{
	"leadership", "teamwork", "communication", "problem solving", "analytical thinking",
	"critical thinking", "creativity", "adaptability", "time management", "project management",
	"collaboration", "mentoring", "coaching", "presentation", "public speaking",
	"negotiation", "conflict resolution", "decision making", "strategic thinking",
}

var titlePatterns = []string{
	`software engineer`, `software developer`, `full stack developer`, `fullstack developer`,
	`frontend developer`, `front-end developer`, `backend developer`, `back-end developer`,
	`web developer`, `mobile developer`, `ios developer`, `android developer`,
	`data scientist`, `data analyst`, `data engineer`, `machine learning engineer`,
	`ai engineer`, `devops engineer`, `site reliability engineer`, `sre`,
	`system administrator`, `network administrator`, `database administrator`,
	`product manager`, `project manager`, `technical lead`, `team lead`,
	`senior developer`, `junior developer`, `principal engineer`, `staff engineer`,
	`architect`, `solution architect`, `technical architect`, `cloud architect`,
	`security engineer`, `cybersecurity analyst`, `qa engineer`, `test engineer`,
	`ui/ux designer`, `ux designer`, `ui designer`, `product designer`,
}

var experiencePatterns = []string{
	`(\d+)\s*(?:years?|yrs?)\s*(?:of\s*)?(?:experience|exp)`,
	`(\d+)\+?\s*(?:years?|yrs?)\s*(?:in|with|of)`,
	`(?:experience|exp).*?(\d+)\s*(?:years?|yrs?)`,
}

// Education levels, highest first. The first pattern that matches wins.
const (
	EducationPhD        = "phd"
	EducationMasters    = "masters"
	EducationBachelors  = "bachelors"
	EducationAssociates = "associates"
	EducationHighSchool = "high_school"
)

var educationPatterns = []struct {
	level   string
	pattern string
}{
	{EducationPhD, `(?:phd|ph\.d|doctorate|doctoral)`},
	{EducationMasters, `(?:masters?|master's|m\.s|m\.a|mba|m\.eng)`},
	{EducationBachelors, `(?:bachelors?|bachelor's|b\.s|b\.a|b\.eng|b\.tech)`},
	{EducationAssociates, `(?:associates?|associate's|a\.s|a\.a)`},
	{EducationHighSchool, `(?:high school|secondary school|diploma)`},
}

var programmingLanguages = map[string]struct{}{
	"python": {}, "java": {}, "javascript": {}, "typescript": {}, "c++": {}, "c#": {}, "php": {}, "ruby": {},
	"go": {}, "rust": {}, "swift": {}, "kotlin": {}, "scala": {}, "r": {}, "matlab": {},
}

var frameworks = map[string]struct{}{
	"react": {}, "angular": {}, "vue": {}, "django": {}, "flask": {}, "fastapi": {}, "spring": {},
	"express": {}, "laravel": {}, "rails": {}, "bootstrap": {}, "tailwind": {},
}

// entityStoplist holds institutional words that recognisers tag as
// organisations but which are never skills.
var entityStoplist = map[string]struct{}{
	"university": {}, "college": {}, "company": {}, "inc": {}, "llc": {}, "corp": {},
}
