package coach

import "github.com/corvidlabs/interviewsim/pkg/types"

// fallbackResources is the static, last-resort resource list used when the
// search tool returns nothing at all for any requested topic.
var fallbackResources = []types.Resource{
	{
		Title:        "Free Programming Courses on freeCodeCamp",
		URL:          "https://www.freecodecamp.org/learn",
		Description:  "Comprehensive free coding curriculum with hands-on projects and certifications.",
		ResourceType: types.ResourceCourse,
		Reasoning:    "This comprehensive platform will help you build strong programming fundamentals across multiple technologies.",
	},
	{
		Title:        "Algorithm Fundamentals on Khan Academy",
		URL:          "https://www.khanacademy.org/computing/computer-science/algorithms",
		Description:  "Learn algorithmic thinking and fundamental computer science concepts.",
		ResourceType: types.ResourceCourse,
		Reasoning:    "This course will strengthen your problem-solving skills and algorithmic thinking abilities.",
	},
	{
		Title:        "Technical Interview Preparation on GeeksforGeeks",
		URL:          "https://www.geeksforgeeks.org/interview-preparation/",
		Description:  "Practice coding problems and learn interview strategies for technical roles.",
		ResourceType: types.ResourceTutorial,
		Reasoning:    "This resource provides targeted practice for technical interviews to improve your performance.",
	},
}
