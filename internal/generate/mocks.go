package generate

import "github.com/rshade/archcost/internal/resource"

// cannedArtifacts are served for providers without a generation backend.
var cannedArtifacts = map[resource.Provider]Artifacts{
	resource.ProviderAWS: {
		Diagram: `graph TD
  subgraph AWS
    A[ALB] --> B[EC2: web-1]
    B --> C[RDS: archgenie-db]
    B --> D[S3: assets]
  end
`,
		Terraform: `resource "aws_instance" "web" {
  ami           = "ami-123456"
  instance_type = "t3.micro"
}

resource "aws_s3_bucket" "assets" {
  bucket = "archgenie-assets"
}
`,
	},
	resource.ProviderGCP: {
		Diagram: `graph TD
  subgraph GCP
    A[Load Balancer] --> B[Compute Engine: web-1]
    B --> C[Cloud SQL: archgenie-db]
    B --> D[Cloud Storage: assets]
  end
`,
		Terraform: `resource "google_compute_instance" "web" {
  name         = "web-1"
  machine_type = "e2-micro"
  zone         = "us-central1-a"
}

resource "google_storage_bucket" "assets" {
  name     = "archgenie-assets"
  location = "US"
}
`,
	},
}

// MockArtifacts returns the canned artifacts for p.
func MockArtifacts(p resource.Provider) (Artifacts, bool) {
	a, ok := cannedArtifacts[p]
	return a, ok
}
