// Command svgeval evaluates a pretrained stochastic video prediction model:
// it samples many futures per clip, keeps the best by PSNR and renders an
// annotated GIF per clip.
package main

func main() {
	Execute()
}
