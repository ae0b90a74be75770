package analyzer

import (
	"cv-agent-go/internal/types"
)

// Category LLM响应中的评分类目，名称是与下游解析器的契约
type Category struct {
	Name string
	Hint string // JSON模板中feedback占位符的提示文案
}

// ExperienceFlag 经验布尔标志的定义
// WithExcerpt为true时额外抽取命中的原文片段
type ExperienceFlag struct {
	Name        string
	Keywords    []string
	WithExcerpt bool
}

// RoleProfile 一个角色家族的完整画像
// 同一个分析器按画像参数化，三个家族共用全部分析逻辑
type RoleProfile struct {
	// Name 角色名，如 "Backend Developer"
	Name string
	// Family 家族标识，如 "backend"
	Family string
	// Specialty 系统提示中的专长描述
	Specialty string
	// FocusAreas 系统提示中列举的考察维度
	FocusAreas []string
	// LevelGuidance 各层级的考察侧重
	LevelGuidance map[string]string
	// Categories 响应JSON中的评分类目，跨家族结构一致、名称不同
	Categories []Category
	// FocusSummary 用户提示结尾的考察重点描述
	FocusSummary string
	// Requirements 内置的按层级要求表
	Requirements map[string]types.RoleRequirements
	// RelevantTech 判定技术是否属于本家族的词表（全小写）
	RelevantTech map[string]bool
	// TechCategories 载荷中的技术分桶，键为桶名，值为关键词表
	TechCategories map[string][]string
	// Flags 经验布尔标志定义
	Flags []ExperienceFlag
}

// BackendProfile 后端开发画像
func BackendProfile() RoleProfile {
	return RoleProfile{
		Name:      "Backend Developer",
		Family:    "backend",
		Specialty: "server-side technologies, APIs, databases, and system architecture",
		FocusAreas: []string{
			"Programming language proficiency and backend frameworks",
			"Database knowledge and experience",
			"API design and implementation expertise",
			"System architecture and scalability understanding",
			"DevOps and deployment knowledge",
			"Security practices and implementation",
			"Performance optimization experience",
			"Testing and quality assurance approach",
		},
		LevelGuidance: map[string]string{
			"junior": "Focus on fundamentals, basic API implementation, and database skills",
			"mid":    "Look for architecture decisions, complex implementations, and performance considerations",
			"senior": "Evaluate system design, scalability solutions, and technical leadership",
		},
		Categories: []Category{
			{Name: "Programming & Frameworks", Hint: "specific feedback on backend programming skills"},
			{Name: "Database & Data Management", Hint: "specific feedback on database experience"},
			{Name: "API Design & Implementation", Hint: "specific feedback on API experience"},
			{Name: "Architecture & Scalability", Hint: "specific feedback on architecture experience"},
			{Name: "DevOps & Deployment", Hint: "specific feedback on DevOps experience"},
		},
		FocusSummary: "backend development skills, API design, database knowledge, system architecture, and scalability experience",
		Requirements: map[string]types.RoleRequirements{
			"junior": {
				CoreSkills: []string{
					"Python/JavaScript/Java/.NET", "Basic API Development",
					"SQL Fundamentals", "Git Version Control",
					"Basic Authentication", "Data Validation",
					"Basic Testing", "HTTP/REST",
				},
				PreferredSkills: []string{
					"Node.js/Django/Spring/Express", "NoSQL Databases",
					"Docker Basics", "CI/CD Fundamentals",
					"Basic Cloud (AWS/Azure/GCP)", "Agile Methodologies",
				},
				Responsibilities: []string{
					"Develop basic API endpoints",
					"Implement database queries and operations",
					"Debug and fix issues in code",
					"Write unit tests for code",
					"Document code and functionalities",
					"Collaborate with frontend and other developers",
				},
			},
			"mid": {
				CoreSkills: []string{
					"Advanced Language Proficiency", "Database Design",
					"API Architecture", "Authentication/Authorization",
					"Caching Strategies", "Error Handling",
					"Performance Optimization", "Message Queues",
					"Containerization", "CI/CD",
				},
				PreferredSkills: []string{
					"Microservices", "Cloud Services",
					"Infrastructure as Code", "Event-Driven Architecture",
					"GraphQL", "Monitoring Tools",
					"Security Best Practices", "Agile/Scrum",
				},
				Responsibilities: []string{
					"Design and implement complex APIs",
					"Optimize database performance",
					"Develop scalable backend services",
					"Implement security best practices",
					"Create comprehensive test suites",
					"Review code and mentor junior developers",
					"Deploy and monitor applications",
					"Collaborate with cross-functional teams",
				},
			},
			"senior": {
				CoreSkills: []string{
					"System Architecture", "Scalability Patterns",
					"Distributed Systems", "Advanced Database Design",
					"Performance Tuning", "Security Architecture",
					"Technical Leadership", "DevOps Integration",
					"API Gateway/Service Mesh",
				},
				PreferredSkills: []string{
					"Multiple Programming Paradigms", "Cloud-Native Development",
					"Serverless Architecture", "Data Engineering",
					"Chaos Engineering", "SRE Practices",
					"Technical Mentorship", "System Design",
				},
				Responsibilities: []string{
					"Architect complex backend systems",
					"Lead technical implementation of major features",
					"Establish coding standards and best practices",
					"Make key technology decisions",
					"Design for performance, scalability, and reliability",
					"Mentor and grow engineering teams",
					"Collaborate with product and business stakeholders",
					"Drive technical vision and innovation",
				},
			},
		},
		RelevantTech: setOf(
			"python", "java", "c#", "go", "rust", "php", "ruby", "node.js",
			"django", "flask", "fastapi", "spring", "spring boot", ".net", "express",
			"asp.net", "laravel", "ruby on rails", "nestjs",
			"sql", "mysql", "postgresql", "oracle", "sql server", "sqlite",
			"mongodb", "cassandra", "dynamodb", "redis", "couchdb", "neo4j",
			"api", "rest", "graphql", "grpc", "soap", "microservices",
			"docker", "kubernetes", "aws", "azure", "gcp", "heroku", "digitalocean",
			"ci/cd", "jenkins", "github actions", "gitlab ci", "circleci",
			"rabbitmq", "kafka", "activemq", "sqs", "pubsub",
			"nginx", "apache", "iis", "load balancing", "caching",
			"elasticsearch", "solr", "serverless", "lambda", "authentication",
			"oauth", "jwt", "cors", "security", "hashing", "encryption",
		),
		TechCategories: map[string][]string{
			"programming_languages": {
				"python", "java", "javascript", "typescript", "c#", "c++", "go", "golang",
				"rust", "php", "ruby", "swift", "kotlin", "scala", "perl", "elixir",
			},
			"frameworks": {
				"django", "flask", "fastapi", "spring", "express", "asp.net",
				"laravel", "rails", "nestjs", "node.js", ".net", "gin", "echo",
			},
			"databases": {
				"sql", "mysql", "postgresql", "oracle", "sql server", "sqlite",
				"mongodb", "cassandra", "dynamodb", "redis", "elasticsearch", "neo4j",
			},
		},
		Flags: []ExperienceFlag{
			{Name: "has_api_experience", Keywords: []string{"api", "rest", "graphql", "grpc", "endpoint", "soap"}},
			{Name: "has_database_experience", Keywords: []string{"database", "sql", "postgres", "mysql", "mongodb", "redis", "nosql"},
				WithExcerpt: true},
			{Name: "has_cloud_experience", Keywords: []string{"aws", "azure", "gcp", "cloud", "lambda", "ec2", "s3"}},
			{Name: "has_microservices_experience", Keywords: []string{"microservice", "service mesh", "distributed system", "event-driven"}},
			{Name: "has_security_experience", Keywords: []string{"security", "oauth", "jwt", "encryption", "authentication", "authorization"}},
			{Name: "has_architecture_experience", Keywords: []string{"architecture", "scalab", "system design", "distributed", "high availability"},
				WithExcerpt: true},
		},
	}
}

// FrontendProfile 前端开发画像
func FrontendProfile() RoleProfile {
	return RoleProfile{
		Name:      "Frontend Developer",
		Family:    "frontend",
		Specialty: "web technologies, modern frameworks, and UI/UX implementation",
		FocusAreas: []string{
			"Technical skills (frameworks, languages, tools)",
			"Project experience and complexity",
			"UI/UX sensibility and implementation skills",
			"Code quality indicators and best practices",
			"Responsive design and cross-browser expertise",
			"Performance optimization knowledge",
			"Testing experience and approaches",
			"Collaboration with designers and backend developers",
		},
		LevelGuidance: map[string]string{
			"junior": "Focus on fundamentals, learning potential, and basic projects",
			"mid":    "Look for framework proficiency, state management, and component design",
			"senior": "Evaluate architecture decisions, scalability approaches, and technical leadership",
		},
		Categories: []Category{
			{Name: "Technical Skills", Hint: "specific feedback on frontend technical skills"},
			{Name: "Frontend Projects", Hint: "specific feedback on project experience"},
			{Name: "Code Quality & Best Practices", Hint: "specific feedback on code quality indicators"},
			{Name: "Responsive Design & Compatibility", Hint: "specific feedback on responsive design experience"},
			{Name: "Overall Presentation", Hint: "specific feedback on resume presentation"},
		},
		FocusSummary: "frontend development skills, framework proficiency, UI implementation, responsive design, and code quality",
		Requirements: map[string]types.RoleRequirements{
			"junior": {
				CoreSkills: []string{
					"HTML5", "CSS3", "JavaScript", "Responsive Design",
					"Basic React/Angular/Vue", "Version Control (Git)",
					"Browser Dev Tools", "CSS Frameworks (Bootstrap/Tailwind)",
				},
				PreferredSkills: []string{
					"TypeScript", "SASS/LESS", "Basic Testing", "Figma/Design Tools",
					"Accessibility Knowledge", "Basic Performance Optimization",
				},
				Responsibilities: []string{
					"Implement UI components following designs",
					"Fix bugs and improve UI performance",
					"Write clean, maintainable code",
					"Collaborate with designers and backend developers",
					"Test and debug across browsers",
				},
			},
			"mid": {
				CoreSkills: []string{
					"Advanced JavaScript", "React/Angular/Vue Proficiency",
					"State Management", "REST/GraphQL APIs", "Jest/Testing Library",
					"Performance Optimization", "Responsive/Mobile Design",
					"Webpack/Build Tools", "TypeScript",
				},
				PreferredSkills: []string{
					"CI/CD", "SSR/SSG", "Advanced CSS", "Animation",
					"Design Systems", "Cross-browser Compatibility",
					"Web Accessibility (WCAG)", "SEO Fundamentals",
				},
				Responsibilities: []string{
					"Architect frontend applications",
					"Build reusable component libraries",
					"Implement complex UI interactions",
					"Optimize application performance",
					"Mentor junior developers",
					"Work closely with UX/UI designers",
					"Integrate with backend APIs",
				},
			},
			"senior": {
				CoreSkills: []string{
					"Frontend Architecture", "Advanced Framework Knowledge",
					"Performance Optimization", "Scalable Applications",
					"Testing Strategies", "Technical Leadership",
					"CI/CD", "Security Best Practices",
				},
				PreferredSkills: []string{
					"Microfrontends", "Design Systems", "Advanced TypeScript",
					"WebGL/Canvas", "PWAs", "Internationalization",
					"Accessibility Expertise", "Cross-platform Development",
				},
				Responsibilities: []string{
					"Design complex frontend architectures",
					"Establish coding standards and best practices",
					"Lead technical implementation of major features",
					"Mentor and grow engineering teams",
					"Evaluate and select technologies",
					"Drive performance and scalability improvements",
					"Collaborate with product and design teams",
					"Make high-level technical decisions",
				},
			},
		},
		RelevantTech: setOf(
			"html", "html5", "css", "css3", "javascript", "typescript",
			"react", "angular", "vue", "svelte", "next.js", "nuxt", "jquery",
			"redux", "mobx", "vuex", "zustand", "sass", "less", "bootstrap",
			"tailwind", "material ui", "chakra ui", "styled components",
			"webpack", "babel", "rollup", "vite", "parcel", "esbuild",
			"jest", "cypress", "playwright", "puppeteer", "storybook",
			"d3.js", "webgl", "three.js", "pwa", "seo", "accessibility", "wcag",
		),
		TechCategories: map[string][]string{
			"frameworks": {
				"react", "angular", "vue", "svelte", "next.js", "nuxt", "jquery",
			},
			"styling": {
				"css", "css3", "sass", "less", "bootstrap", "tailwind",
				"material ui", "chakra ui", "styled components",
			},
			"build_tools": {
				"webpack", "babel", "rollup", "vite", "parcel", "esbuild",
			},
			"testing_tools": {
				"jest", "cypress", "playwright", "puppeteer", "storybook", "testing library",
			},
		},
		Flags: []ExperienceFlag{
			{Name: "has_framework_experience", Keywords: []string{"react", "angular", "vue", "svelte", "next.js"},
				WithExcerpt: true},
			{Name: "has_state_management", Keywords: []string{"redux", "mobx", "vuex", "zustand", "state management"}},
			{Name: "has_testing_experience", Keywords: []string{"jest", "cypress", "playwright", "testing library", "unit test"}},
			{Name: "has_responsive_design", Keywords: []string{"responsive", "mobile-first", "cross-browser", "media quer"},
				WithExcerpt: true},
			{Name: "has_accessibility_experience", Keywords: []string{"accessibility", "wcag", "a11y", "aria"}},
		},
	}
}

// DevOpsProfile 运维平台画像
func DevOpsProfile() RoleProfile {
	return RoleProfile{
		Name:      "DevOps Engineer",
		Family:    "devops",
		Specialty: "infrastructure, CI/CD, cloud services, containerization, and automation",
		FocusAreas: []string{
			"Infrastructure and cloud platform experience",
			"CI/CD pipeline design and implementation",
			"Containerization and orchestration knowledge",
			"Automation and scripting abilities",
			"Monitoring and observability expertise",
			"Security practices and implementation",
			"Performance optimization experience",
			"Collaboration and communication skills",
		},
		LevelGuidance: map[string]string{
			"junior": "Focus on fundamentals, Linux skills, basic cloud knowledge, and willingness to learn",
			"mid":    "Look for automation experience, CI/CD pipeline implementation, and container orchestration",
			"senior": "Evaluate architecture decisions, scalability solutions, and technical leadership in DevOps practices",
		},
		Categories: []Category{
			{Name: "Infrastructure & Cloud", Hint: "specific feedback on infrastructure & cloud experience"},
			{Name: "CI/CD & Deployment", Hint: "specific feedback on CI/CD experience"},
			{Name: "Containerization & Orchestration", Hint: "specific feedback on container experience"},
			{Name: "Automation & Scripting", Hint: "specific feedback on automation experience"},
			{Name: "Monitoring & Observability", Hint: "specific feedback on monitoring experience"},
		},
		FocusSummary: "infrastructure, cloud platforms, CI/CD, containerization, automation, and monitoring experience",
		Requirements: map[string]types.RoleRequirements{
			"junior": {
				CoreSkills: []string{
					"Linux/Unix", "Basic Scripting (Bash/Python)",
					"Git & Version Control", "Basic CI/CD Concepts",
					"Docker Basics", "Cloud Basics (AWS/Azure/GCP)",
					"Basic Monitoring", "Infrastructure Basics",
				},
				PreferredSkills: []string{
					"Configuration Management Tools", "Basic Kubernetes",
					"Infrastructure as Code", "Networking Fundamentals",
					"Security Basics", "Log Management",
				},
				Responsibilities: []string{
					"Assist with deployment processes",
					"Help maintain CI/CD pipelines",
					"Perform basic server administration tasks",
					"Monitor system performance and availability",
					"Document infrastructure and processes",
					"Support development and operations teams",
				},
			},
			"mid": {
				CoreSkills: []string{
					"Advanced Linux/Unix", "Scripting & Automation",
					"Container Orchestration (Kubernetes)",
					"CI/CD Pipeline Design", "Infrastructure as Code",
					"Cloud Services & Architecture", "Monitoring & Logging",
					"Networking & Security",
				},
				PreferredSkills: []string{
					"Multi-cloud Deployments", "Configuration Management",
					"Database Administration", "Performance Tuning",
					"High Availability Design", "Disaster Recovery",
					"Cost Optimization",
				},
				Responsibilities: []string{
					"Design and implement CI/CD pipelines",
					"Build and maintain containerized environments",
					"Automate infrastructure provisioning",
					"Implement monitoring and alerting solutions",
					"Troubleshoot complex system issues",
					"Improve system reliability and performance",
					"Collaborate with development teams on best practices",
				},
			},
			"senior": {
				CoreSkills: []string{
					"DevOps Architecture", "Platform Engineering",
					"Advanced Kubernetes & Container Orchestration",
					"Advanced CI/CD & GitOps", "Cloud-Native Architecture",
					"SRE Practices", "Security & Compliance",
					"Performance Engineering",
				},
				PreferredSkills: []string{
					"Multi-cloud Strategy", "Service Mesh",
					"Serverless Architecture", "Chaos Engineering",
					"Advanced Monitoring & Observability",
					"Mentorship & Leadership", "Cost Management",
				},
				Responsibilities: []string{
					"Design resilient and scalable infrastructure",
					"Establish DevOps best practices and standards",
					"Lead implementation of complex DevOps solutions",
					"Design disaster recovery and high availability solutions",
					"Optimize cloud infrastructure and costs",
					"Mentor junior engineers and collaborate with leadership",
					"Drive automation and continuous improvement",
					"Ensure security and compliance throughout the pipeline",
				},
			},
		},
		RelevantTech: setOf(
			"docker", "kubernetes", "k8s", "jenkins", "gitlab ci", "github actions",
			"circleci", "travis ci", "terraform", "cloudformation", "ansible", "puppet",
			"chef", "salt", "aws", "azure", "gcp", "google cloud", "cloud", "devops",
			"ci/cd", "continuous integration", "continuous delivery",
			"prometheus", "grafana", "nagios", "zabbix", "elk", "elasticsearch",
			"logstash", "kibana", "datadog", "splunk", "new relic", "linux", "bash",
			"shell script", "powershell", "python", "automation", "git", "vagrant",
			"packer", "istio", "consul", "vault", "argocd", "fluxcd", "helm",
			"microservices", "serverless", "lambda", "vpc", "iam", "load balancer",
			"nginx", "apache", "s3", "ec2", "rds", "cloudwatch", "networking",
			"high availability", "disaster recovery", "infrastructure as code", "iac",
		),
		TechCategories: map[string][]string{
			"cloud_platforms": {
				"aws", "azure", "gcp", "google cloud", "alibaba cloud",
				"oracle cloud", "digitalocean", "heroku",
			},
			"ci_cd_tools": {
				"jenkins", "github actions", "gitlab ci", "circleci", "travis ci",
				"azure devops", "argocd", "fluxcd", "tekton", "spinnaker",
			},
			"container_technologies": {
				"docker", "kubernetes", "k8s", "openshift", "rancher",
				"containerd", "podman", "helm", "istio", "linkerd",
			},
			"config_management": {
				"ansible", "puppet", "chef", "salt", "terraform",
				"cloudformation", "pulumi",
			},
			"monitoring_tools": {
				"prometheus", "grafana", "nagios", "zabbix", "datadog",
				"new relic", "splunk", "elk", "cloudwatch", "sentry",
			},
		},
		Flags: []ExperienceFlag{
			{Name: "has_cloud_experience", Keywords: []string{"aws", "azure", "gcp", "cloud", "ec2", "s3", "lambda"},
				WithExcerpt: true},
			{Name: "has_cicd_experience", Keywords: []string{"ci/cd", "continuous integration", "continuous delivery", "jenkins", "pipeline", "github actions"},
				WithExcerpt: true},
			{Name: "has_container_experience", Keywords: []string{"docker", "container", "kubernetes", "k8s", "helm", "pod"},
				WithExcerpt: true},
			{Name: "has_iac_experience", Keywords: []string{"terraform", "cloudformation", "infrastructure as code", "iac", "pulumi", "arm template"}},
			{Name: "has_automation_experience", Keywords: []string{"automat", "script", "pipeline", "ansible", "puppet", "cron"}},
		},
	}
}

// commonTechKeywords 跨家族的通用技术关键词，用于从原始文本补充技术识别
var commonTechKeywords = []string{
	// 语言
	"Python", "JavaScript", "TypeScript", "Java", "C#", "C++", "Go", "Rust",
	"PHP", "Ruby", "Swift", "Kotlin", "Scala", "Perl", "Bash", "Shell",
	// 前端
	"React", "Angular", "Vue", "Next.js", "Redux", "HTML5", "CSS3", "SASS",
	"LESS", "Bootstrap", "Tailwind", "jQuery", "D3.js", "WebGL", "Three.js",
	"Webpack", "Babel", "Jest", "Cypress", "Playwright", "Storybook",
	// 后端
	"Node.js", "Express", "Django", "Flask", "Spring", "ASP.NET", "Laravel",
	"Rails", "FastAPI", "GraphQL", "REST", "gRPC", "WebSockets",
	// 数据库
	"SQL", "PostgreSQL", "MySQL", "MongoDB", "DynamoDB", "Cassandra", "Redis",
	"Elasticsearch", "Neo4j", "SQLite", "MariaDB", "Oracle",
	// 云与运维
	"AWS", "Azure", "GCP", "Docker", "Kubernetes", "Terraform", "Ansible",
	"Jenkins", "CircleCI", "GitHub Actions", "ArgoCD", "Helm",
	"Prometheus", "Grafana", "ELK", "Datadog", "CI/CD", "Linux",
	"Nginx", "Serverless", "Lambda", "EC2", "S3", "RDS", "EKS",
	// 其他
	"Git", "Scrum", "Agile", "Kanban", "TDD", "Microservices",
	"OAuth", "JWT", "Caching", "Load Balancing", "Monitoring",
}

func setOf(items ...string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
