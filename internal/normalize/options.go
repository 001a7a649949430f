package normalize

// OptionSet carries the canonical option lists for every constrained form
// field. Lists come from the live form via the option cache when available,
// falling back to the lists below.
type OptionSet struct {
	ActivityTypes  []string
	PrimaryTech    []string
	AdditionalTech []string
	Audience       []string
}

// FallbackOptions returns the hardcoded option lists used when live
// extraction from the form is unavailable.
func FallbackOptions() OptionSet {
	return OptionSet{
		ActivityTypes: []string{
			"Blog",
			"Video",
			"Podcast",
			"Article",
			"Forum",
			"Open Source Project",
			"Speaking (Conference)",
			"Speaking (User Group)",
			"Workshop",
			"Webinar",
			"Hackathon",
		},
		PrimaryTech: []string{
			"Artificial Intelligence",
			"Cloud Computing",
			"Web Development",
			"Database Technology",
			"Cybersecurity",
			"DevOps",
			"Mobile Development",
			"Data Analytics",
			"Internet of Things",
			"Blockchain",
			"Machine Learning",
			"Software Development",
			".NET",
			"Azure",
			"Microsoft 365",
			"Power Platform",
		},
		AdditionalTech: []string{
			"Python",
			"JavaScript",
			"React",
			"Node.js",
			"C#",
			"TypeScript",
			"Azure Functions",
			"Azure App Service",
			"Power Apps",
			"Power BI",
			"SharePoint",
			"Teams",
			"Security",
			"Performance Optimization",
			"Analytics",
			"Machine Learning",
			"Network Security",
			"Compliance",
			"DevOps",
		},
		Audience: []string{
			"Developer",
			"IT Pro",
			"Business Decision Maker",
			"Technical Decision Maker",
			"Student",
		},
	}
}
