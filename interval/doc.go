/*Package interval holds the coordinate types shared by the window cache:
  Region, a 0-based half-open range on one chromosome, parsers for region
  strings and BED files, and Index, an augmented interval tree mapping a range
  to the keys of the records stored there.

  Unlike a BED union, Index keeps overlapping intervals separate; records with
  identical bounds share one node.
*/
package interval
