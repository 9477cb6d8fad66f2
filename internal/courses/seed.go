package courses

var seedSchools = []School{
	{Name: "Beijing Chaoyang Campus", City: "Beijing"},
	{Name: "Shanghai Xuhui Campus", City: "Shanghai"},
	{Name: "Hangzhou Xihu Campus", City: "Hangzhou"},
	{Name: "Shenzhen Nanshan Campus", City: "Shenzhen"},
}

var seedCourses = []Course{
	{Name: "Espresso Fundamentals", Edu: 0, Type: "Coffee Craft", Price: 1980, Duration: 5},
	{Name: "Latte Art Workshop", Edu: 1, Type: "Coffee Craft", Price: 2680, Duration: 7},
	{Name: "Advanced Roasting", Edu: 3, Type: "Coffee Craft", Price: 6800, Duration: 20},
	{Name: "Cafe Operations 101", Edu: 1, Type: "Store Management", Price: 3980, Duration: 10},
	{Name: "Multi-store Management", Edu: 3, Type: "Store Management", Price: 8800, Duration: 30},
	{Name: "Q Grader Preparation", Edu: 4, Type: "Tasting Certification", Price: 12800, Duration: 45},
	{Name: "Cupping Basics", Edu: 2, Type: "Tasting Certification", Price: 2280, Duration: 3},
	{Name: "Coffee History Salon", Edu: 0, Type: "Culture Salon", Price: 199, Duration: 1},
}
